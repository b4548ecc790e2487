package networkcheck

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCheck struct {
	kind       string
	failCount  int32
	calls      int32
	succeedMsg string
}

func (f *fakeCheck) Kind() string   { return f.kind }
func (f *fakeCheck) Target() string { return "fake-target" }

func (f *fakeCheck) Run(ctx context.Context) Outcome {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failCount {
		return Outcome{Status: StatusClosed, Detail: "simulated failure"}
	}
	return Outcome{Status: StatusOpen, Detail: f.succeedMsg}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerSucceedsAfterRetry(t *testing.T) {
	runner := NewRunner(newTestLogger(), 2, time.Millisecond)
	check := &fakeCheck{kind: "test", failCount: 2, succeedMsg: "ok"}

	out := make(chan Result, 20)
	runner.Run(context.Background(), []Check{check}, out)
	close(out)

	var last Result
	for res := range out {
		last = res
	}
	if last.Status != StatusOpen {
		t.Fatalf("final status = %s, want %s", last.Status, StatusOpen)
	}
	if atomic.LoadInt32(&check.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", check.calls)
	}
}

// TestRunnerRetriesUntilContextCancelled asserts the spec's "retry
// indefinitely until the stream is cancelled" rule: a check that always
// fails keeps being retried (well past any fixed attempt count) until its
// context is cancelled, at which point the runner stops without ever
// reporting a terminal success.
func TestRunnerRetriesUntilContextCancelled(t *testing.T) {
	runner := NewRunner(newTestLogger(), 2, time.Millisecond)
	check := &fakeCheck{kind: "test", failCount: 1 << 30}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := make(chan Result, 1000)
	runner.Run(ctx, []Check{check}, out)
	close(out)

	if atomic.LoadInt32(&check.calls) < 5 {
		t.Fatalf("expected many retry attempts before cancellation, got %d", check.calls)
	}
	for res := range out {
		if !res.Status.Failing() && res.Status.Terminal() {
			t.Fatalf("an always-failing check must never report a passing terminal status, got %s", res.Status)
		}
	}
}

// TestRunnerEmitsQueuedBeforeChecking asserts the ordering invariant: a
// Queued result for every check is emitted before any Checking result, in
// the input order the checks were given.
func TestRunnerEmitsQueuedBeforeChecking(t *testing.T) {
	runner := NewRunner(newTestLogger(), 2, time.Millisecond)
	checks := []Check{
		&fakeCheck{kind: "a", succeedMsg: "ok"},
		&fakeCheck{kind: "b", succeedMsg: "ok"},
		&fakeCheck{kind: "c", succeedMsg: "ok"},
	}

	out := make(chan Result, 50)
	runner.Run(context.Background(), checks, out)
	close(out)

	var seenQueued, seenChecking int
	queuedOrder := make([]string, 0, 3)
	for res := range out {
		switch res.Status {
		case StatusQueued:
			queuedOrder = append(queuedOrder, res.Kind)
			seenQueued++
			if seenChecking > 0 {
				t.Fatalf("saw Checking before every check was Queued")
			}
		case StatusChecking:
			seenChecking++
		}
	}
	if seenQueued != len(checks) {
		t.Fatalf("expected %d Queued results, got %d", len(checks), seenQueued)
	}
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if queuedOrder[i] != k {
			t.Fatalf("Queued order = %v, want %v", queuedOrder, want)
		}
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	runner := NewRunner(newTestLogger(), 1, time.Millisecond)

	var concurrent, maxConcurrent int32
	checks := make([]Check, 5)
	for i := range checks {
		checks[i] = &trackingCheck{
			concurrent:    &concurrent,
			maxConcurrent: &maxConcurrent,
		}
	}

	out := make(chan Result, 50)
	runner.Run(context.Background(), checks, out)

	if atomic.LoadInt32(&maxConcurrent) > 1 {
		t.Fatalf("observed concurrency %d, want at most 1", maxConcurrent)
	}
}

type trackingCheck struct {
	concurrent    *int32
	maxConcurrent *int32
}

func (c *trackingCheck) Kind() string   { return "tracking" }
func (c *trackingCheck) Target() string { return "t" }

func (c *trackingCheck) Run(ctx context.Context) Outcome {
	n := atomic.AddInt32(c.concurrent, 1)
	defer atomic.AddInt32(c.concurrent, -1)
	for {
		cur := atomic.LoadInt32(c.maxConcurrent)
		if n <= cur || atomic.CompareAndSwapInt32(c.maxConcurrent, cur, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return Outcome{Status: StatusOpen}
}
