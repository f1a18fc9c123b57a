// internal/harness/settle.go
package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is used when a WaitCondition has no interval.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultPendingExpression counts outstanding jQuery requests plus an optional
	// page-maintained window.__pendingRequests counter.
	DefaultPendingExpression = `(function() {
		var n = 0;
		if (window.jQuery && typeof window.jQuery.active === "number") { n += window.jQuery.active; }
		if (typeof window.__pendingRequests === "number") { n += window.__pendingRequests; }
		return n;
	})()`
)

// WaitCondition polls Predicate every Interval until it holds or Timeout elapses.
//
// With Recheck set, a satisfied predicate is probed once more after one extra
// interval, when the deadline leaves room for it. A failed re-check resumes
// polling. This narrows, but does not close, the window in which new work starts
// right after the predicate first held.
type WaitCondition struct {
	Predicate func(ctx context.Context) (bool, error)
	Timeout   time.Duration
	Interval  time.Duration
	Recheck   bool
}

// waitTimeoutError is returned by Wait when the deadline passes.
type waitTimeoutError struct {
	elapsed time.Duration
	lastErr error
}

func (e *waitTimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %v", e.elapsed)
}

func (e *waitTimeoutError) Unwrap() error { return e.lastErr }

// Wait blocks until the condition holds, the deadline passes, or ctx is done.
// Predicate errors count as "not yet" unless they are permanent. Each predicate
// call gets a context bounded by the deadline, so a hung call ends the wait
// at most one interval late.
func (w WaitCondition) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	deadline := start.Add(w.Timeout)
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var lastErr error
	for {
		ok, overran, err := w.call(ctx, deadline, interval)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Since(start), ctxErr
		}
		if overran {
			return time.Since(start), &waitTimeoutError{elapsed: time.Since(start), lastErr: cmp.Or(err, lastErr)}
		}
		if err != nil {
			if isPermanent(err) {
				return time.Since(start), err
			}
			lastErr = err
		}

		if err == nil && ok {
			if !w.Recheck || time.Now().Add(interval).After(deadline) {
				return time.Since(start), nil
			}
			if err := sleepCtx(ctx, interval); err != nil {
				return time.Since(start), err
			}
			ok, overran, err = w.call(ctx, deadline, interval)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return time.Since(start), ctxErr
			}
			if overran {
				return time.Since(start), &waitTimeoutError{elapsed: time.Since(start), lastErr: cmp.Or(err, lastErr)}
			}
			if err == nil && ok {
				return time.Since(start), nil
			}
			if err != nil {
				if isPermanent(err) {
					return time.Since(start), err
				}
				lastErr = err
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Since(start), &waitTimeoutError{elapsed: time.Since(start), lastErr: lastErr}
		}
		if err := sleepCtx(ctx, min(interval, remaining)); err != nil {
			return time.Since(start), err
		}
	}
}

// call runs one predicate evaluation bounded by the wait deadline, or by one
// interval from now when that is later, so a zero timeout still gets one probe.
// overran reports that the evaluation was cut short by that bound rather than
// by ctx.
func (w WaitCondition) call(ctx context.Context, deadline time.Time, floor time.Duration) (ok, overran bool, err error) {
	callDeadline := deadline
	if earliest := time.Now().Add(floor); earliest.After(callDeadline) {
		callDeadline = earliest
	}
	callCtx, cancel := context.WithDeadline(ctx, callDeadline)
	defer cancel()

	ok, err = w.Predicate(callCtx)
	if err == nil && ok {
		return true, false, nil
	}
	return ok, ctx.Err() == nil && callCtx.Err() != nil, err
}

func isPermanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrScriptUnsupported)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settler blocks until a PendingProbe reports quiescence.
type Settler struct {
	Probe    PendingProbe
	Interval time.Duration
	Recheck  bool
}

// AwaitQuiescence polls the probe until it reports zero pending operations. It
// fails with *SettleTimeoutError once timeout elapses. A zero timeout probes
// exactly once.
func (s Settler) AwaitQuiescence(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if timeout < 0 {
		timeout = 0
	}
	pending := 0
	cond := WaitCondition{
		Timeout:  timeout,
		Interval: s.Interval,
		Recheck:  s.Recheck,
		Predicate: func(ctx context.Context) (bool, error) {
			n, err := s.Probe.Pending(ctx)
			if err != nil {
				return false, err
			}
			pending = n
			return n <= 0, nil
		},
	}

	elapsed, err := cond.Wait(ctx)
	if err == nil {
		return elapsed, nil
	}
	var wt *waitTimeoutError
	if errors.As(err, &wt) {
		return elapsed, &SettleTimeoutError{Timeout: timeout, Elapsed: elapsed, Pending: pending, Cause: wt.lastErr}
	}
	return elapsed, err
}

// ScriptProbe reads the pending count by evaluating a JavaScript expression.
type ScriptProbe struct {
	Driver     Driver
	Expression string
}

// Pending implements PendingProbe.
func (p ScriptProbe) Pending(ctx context.Context) (int, error) {
	expr := p.Expression
	if expr == "" {
		expr = DefaultPendingExpression
	}
	var n float64
	if err := p.Driver.Evaluate(ctx, expr, &n); err != nil {
		return 0, fmt.Errorf("failed to read pending operation count: %w", err)
	}
	return int(n), nil
}
