package secrets

import (
	"testing"
	"time"
)

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	l := NewLoginLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("admin@prose.local") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("admin@prose.local") {
		t.Fatal("4th attempt within the window should be blocked")
	}
}

func TestLoginLimiterResetClearsCounter(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)

	if !l.Allow("admin@prose.local") {
		t.Fatal("first attempt should be allowed")
	}
	if l.Allow("admin@prose.local") {
		t.Fatal("second attempt should be blocked")
	}

	l.Reset("admin@prose.local")
	if !l.Allow("admin@prose.local") {
		t.Fatal("attempt after Reset should be allowed")
	}
}

func TestLoginLimiterIsPerKey(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)

	if !l.Allow("alice@prose.local") {
		t.Fatal("alice's first attempt should be allowed")
	}
	if !l.Allow("bob@prose.local") {
		t.Fatal("bob's first attempt should be allowed independently of alice's")
	}
}
