// internal/harness/session.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const closeTimeout = 10 * time.Second

// Options configures a Session. Zero durations fall back to DefaultOptions.
type Options struct {
	// BaseURL is the origin relative paths passed to Visit are resolved against.
	BaseURL string

	NavigationTimeout time.Duration
	// FailOnServerError fails Visit when the document response has status >= 500.
	FailOnServerError bool
	// ToleratedStatus lists server error codes that never fail a visit.
	ToleratedStatus []int

	SettleTimeout  time.Duration
	SettleInterval time.Duration
	SettleRecheck  bool
	// Probe overrides the pending-work probe. When nil, a driver that implements
	// PendingProbe is used directly, otherwise a ScriptProbe evaluating
	// PendingExpression.
	Probe             PendingProbe
	PendingExpression string

	// AssertWait bounds how long a failing expectation is retried.
	AssertWait time.Duration
	// LookupTimeout bounds how long a locator waits for a match to appear.
	LookupTimeout       time.Duration
	NormalizeWhitespace bool
	// StrictOrdering makes expectations on an unsettled page fail with
	// ErrUnsettled instead of settling first.
	StrictOrdering bool

	// AllowJSErrors are patterns of client-side errors that Finish ignores.
	AllowJSErrors []string

	// OnSettle, when set, observes every settle attempt.
	OnSettle func(elapsed time.Duration, err error)
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		BaseURL:             "http://localhost:3000",
		NavigationTimeout:   30 * time.Second,
		FailOnServerError:   true,
		SettleTimeout:       2 * time.Second,
		SettleInterval:      DefaultPollInterval,
		SettleRecheck:       true,
		PendingExpression:   DefaultPendingExpression,
		AssertWait:          2 * time.Second,
		LookupTimeout:       2 * time.Second,
		NormalizeWhitespace: true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.SettleTimeout < 0 {
		o.SettleTimeout = 0
	}
	if o.SettleInterval <= 0 {
		o.SettleInterval = d.SettleInterval
	}
	if o.PendingExpression == "" {
		o.PendingExpression = d.PendingExpression
	}
	if o.AssertWait < 0 {
		o.AssertWait = 0
	}
	if o.LookupTimeout < 0 {
		o.LookupTimeout = 0
	}
	return o
}

// Session drives one scenario against one Driver. Operations are serialized; a
// Session must not be shared between scenarios.
//
// The first error moves the session to StateFailed. Every later operation returns
// an error that wraps that first failure.
type Session struct {
	id      string
	drv     Driver
	opts    Options
	settler Settler
	allow   *AllowList
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	settled bool
	failure error
	closed  bool
}

// NewSession creates a Session that owns drv. The session closes the driver on
// Close, and also when an operation is aborted by context cancellation.
func NewSession(drv Driver, opts Options, logger *zap.Logger) (*Session, error) {
	if drv == nil {
		return nil, errors.New("harness: driver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	allow, err := NewAllowList(opts.AllowJSErrors...)
	if err != nil {
		return nil, err
	}

	probe := opts.Probe
	if probe == nil {
		if p, ok := drv.(PendingProbe); ok {
			probe = p
		} else {
			probe = ScriptProbe{Driver: drv, Expression: opts.PendingExpression}
		}
	}

	id := uuid.New().String()
	return &Session{
		id:      id,
		drv:     drv,
		opts:    opts,
		settler: Settler{Probe: probe, Interval: opts.SettleInterval, Recheck: opts.SettleRecheck},
		allow:   allow,
		logger:  logger.Named("session").With(zap.String("session_id", id)),
		state:   StateInitial,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the first failure, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// do runs fn under the session lock with the failure and cancellation rules applied.
func (s *Session) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}
	if s.failure != nil {
		return fmt.Errorf("%s: session already failed: %w", op, s.failure)
	}
	if s.state == StateDone {
		return fmt.Errorf("%s: scenario already finished", op)
	}
	if err := ctx.Err(); err != nil {
		s.failLocked(ctx, op, err)
		return err
	}

	err := fn(ctx)
	if err != nil {
		// A cancelled context takes precedence over whatever the driver reported.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		s.failLocked(ctx, op, err)
	}
	return err
}

func (s *Session) failLocked(ctx context.Context, op string, err error) {
	s.state = StateFailed
	s.failure = err
	s.logger.Debug("Session operation failed.", zap.String("op", op), zap.Error(err))

	if ctx.Err() != nil && !s.closed {
		// Release the browser before the caller sees the cancellation.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = s.closeLocked(closeCtx)
	}
}

func (s *Session) requirePage() error {
	if !s.state.hasPage() {
		return ErrNoPage
	}
	return nil
}

// AwaitQuiescence blocks until the page reports no pending asynchronous work, or
// fails with *SettleTimeoutError after timeout.
func (s *Session) AwaitQuiescence(ctx context.Context, timeout time.Duration) error {
	return s.do(ctx, "await quiescence", func(ctx context.Context) error {
		if err := s.requirePage(); err != nil {
			return err
		}
		return s.settleLocked(ctx, timeout)
	})
}

// Settle waits for quiescence within the configured settle timeout.
func (s *Session) Settle(ctx context.Context) error {
	return s.AwaitQuiescence(ctx, s.opts.SettleTimeout)
}

func (s *Session) settleLocked(ctx context.Context, timeout time.Duration) error {
	elapsed, err := s.settler.AwaitQuiescence(ctx, timeout)
	if s.opts.OnSettle != nil {
		s.opts.OnSettle(elapsed, err)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("Page settled.", zap.Duration("elapsed", elapsed))
	s.settled = true
	s.state = StateSettled
	return nil
}

// ensureSettledLocked applies the settle-before-assert rule.
func (s *Session) ensureSettledLocked(ctx context.Context) error {
	if s.settled {
		return nil
	}
	if s.opts.StrictOrdering {
		return ErrUnsettled
	}
	return s.settleLocked(ctx, s.opts.SettleTimeout)
}

// Finish ends the scenario. It fails with *PageErrorsError when the driver
// observed client-side errors the allow-list does not cover.
func (s *Session) Finish(ctx context.Context) error {
	return s.do(ctx, "finish", func(ctx context.Context) error {
		if unexpected := s.allow.Unexpected(s.drv.PageErrors()); len(unexpected) > 0 {
			return &PageErrorsError{Errors: unexpected}
		}
		s.state = StateDone
		s.logger.Debug("Scenario finished.")
		return nil
	})
}

// Close releases the driver. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(ctx)
}

func (s *Session) closeLocked(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.drv.Close(ctx); err != nil {
		s.logger.Warn("Failed to close driver.", zap.Error(err))
		return fmt.Errorf("failed to close driver: %w", err)
	}
	return nil
}
