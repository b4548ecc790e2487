package secrets

import (
	"sync"
	"time"
)

// LoginLimiter throttles repeated failed login attempts per principal
// (JID or IP). The teacher's equivalent (core/pkg/auth/ratelimit.go) backs
// this with Redis so counters survive across replicas; a pod is always a
// single process, so an in-memory fixed-window counter keyed by string gives the
// same behavior without a Redis dependency the pod otherwise has no use
// for (see DESIGN.md).
type LoginLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	max      int
	window   time.Duration
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// NewLoginLimiter allows up to max attempts per key within window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
	}
}

// Allow records an attempt for key and reports whether it is still within
// the allowed rate. Not allowed attempts still count against the window so
// a client cannot reset its budget by spamming right at the boundary.
func (l *LoginLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.windowEnd) {
		b = &bucket{count: 0, windowEnd: now.Add(l.window)}
		l.buckets[key] = b
	}

	b.count++
	return b.count <= l.max
}

// Reset clears the attempt counter for key, called after a successful login.
func (l *LoginLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
