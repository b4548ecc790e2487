package networkcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner schedules a batch of checks with bounded concurrency, emitting a
// Result for every state transition: Queued the moment a check is
// accepted (preserving input order), Checking right before it starts
// running, then a terminal status. A failing terminal status is retried
// with a fixed delay between attempts; retries continue indefinitely
// until ctx is cancelled or its deadline passes — there is no attempt
// cap. A successful check never retries.
type Runner struct {
	logger      *slog.Logger
	concurrency int
	retryDelay  time.Duration
}

func NewRunner(logger *slog.Logger, concurrency int, retryDelay time.Duration) *Runner {
	return &Runner{logger: logger, concurrency: concurrency, retryDelay: retryDelay}
}

// Run schedules every check in checks and emits its results onto out.
// Queued results for the whole batch are emitted synchronously, in input
// order, before any check starts running — the ordering invariant the
// streaming API promises callers. Run blocks until every check has
// reached a passing status or ctx is done.
func (r *Runner) Run(ctx context.Context, checks []Check, out chan<- Result) {
	now := time.Now().UTC()
	for _, c := range checks {
		emit(out, Result{Kind: c.Kind(), Target: c.Target(), Status: StatusQueued, CheckedAt: now})
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, c := range checks {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			r.runUntilTerminal(ctx, c, out)
		}()
	}
	wg.Wait()
}

// runUntilTerminal runs c, emitting Checking before each attempt and the
// resulting status after it, retrying on a failing status until ctx is
// cancelled or its deadline passes.
func (r *Runner) runUntilTerminal(ctx context.Context, c Check, out chan<- Result) {
	for {
		if ctx.Err() != nil {
			return
		}

		emit(out, Result{Kind: c.Kind(), Target: c.Target(), Status: StatusChecking, CheckedAt: time.Now().UTC()})

		outcome := c.Run(ctx)
		res := Result{
			Kind:      c.Kind(),
			Target:    c.Target(),
			Status:    outcome.Status,
			Detail:    outcome.Detail,
			Expected:  outcome.Expected,
			Found:     outcome.Found,
			CheckedAt: time.Now().UTC(),
		}
		emit(out, res)

		if !outcome.Status.Failing() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.retryDelay):
		}
	}
}

// emit sends res on out, giving up after a short timeout rather than
// blocking forever if the consumer (an HTTP handler that returned early,
// or a full run_all batch buffer) has stopped draining it.
func emit(out chan<- Result, res Result) {
	select {
	case out <- res:
	case <-time.After(5 * time.Second):
	}
}
