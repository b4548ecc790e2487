// Package lifecycle coordinates the process's own restart: a single
// Manager owns the root cancellation token for the currently running
// instance, broadcasts a "restarting" signal to anything that needs to
// drain (SSE streams, long-poll handlers), and hands off to a successor
// instance via RotateInstance so an in-process factory-reset restart never
// has to exit the operating-system process.
package lifecycle

import (
	"context"
	"sync"
)

// Manager owns one instance's cancellation token and restart signaling.
// The zero value is not usable; construct with New or RotateInstance.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	restarting  bool
	subscribers []chan bool

	// predecessor is the instance this Manager was rotated from, retained
	// only so RotateInstance can wait for it to finish draining before
	// returning.
	predecessor *Manager
	done        chan struct{}
}

// New creates the root Manager for the process's first instance, deriving
// its token from parent (typically one cancelled by SIGINT/SIGTERM).
func New(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Context returns the token this instance's long-running work should bind
// to: HTTP handlers, SSE streams, background loops.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// RequestRestart broadcasts restarting=true to every subscriber and cancels
// this instance's context, so bound work starts draining immediately. It
// does not itself start a successor instance — the caller (normally
// internal/app's run loop) observes the cancellation and calls
// RotateInstance once this instance's HTTP server has shut down.
func (m *Manager) RequestRestart() {
	m.mu.Lock()
	m.restarting = true
	subs := append([]chan bool(nil), m.subscribers...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- true:
		default:
		}
	}
	m.cancel()
}

// RestartRequested reports whether RequestRestart has been called on this
// instance.
func (m *Manager) RestartRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarting
}

// Watch registers a channel that receives true the moment RequestRestart is
// called. The channel is buffered by the caller if it wants to avoid
// blocking Watch's broadcaster; a full channel is skipped rather than
// blocked on.
func (m *Manager) Watch() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Done marks this instance as fully drained (its HTTP server has returned
// from Shutdown), releasing any successor waiting on it in RotateInstance.
func (m *Manager) Done() {
	close(m.done)
}

// RotateInstance produces the Manager for the successor instance: a fresh
// child of background (not of the predecessor's now-cancelled context,
// which would make the child born already-cancelled), remembering the
// predecessor so WaitForPredecessor can block until it has fully drained.
func (m *Manager) RotateInstance() *Manager {
	child := New(context.Background())
	child.predecessor = m
	return child
}

// WaitForPredecessor blocks until the instance this Manager was rotated
// from has called Done, or ctx is cancelled. It is a no-op for the root
// Manager (no predecessor).
func (m *Manager) WaitForPredecessor(ctx context.Context) error {
	if m.predecessor == nil {
		return nil
	}
	select {
	case <-m.predecessor.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
