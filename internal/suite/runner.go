// internal/suite/runner.go
package suite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// Status is the outcome of one scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records how one scenario ran.
type Result struct {
	Feature    string        `json:"feature"`
	Name       string        `json:"name"`
	Driver     string        `json:"driver"`
	Status     Status        `json:"status"`
	FailedStep string        `json:"failed_step,omitempty"`
	Error      string        `json:"error,omitempty"`
	SessionID  string        `json:"session_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`

	Err error `json:"-"`
}

// FullName matches Scenario.FullName.
func (r Result) FullName() string {
	if r.Name == "" {
		return r.Feature
	}
	return r.Feature + " " + r.Name
}

// Summary is the outcome of a run.
type Summary struct {
	RunID     string        `json:"run_id"`
	BaseURL   string        `json:"base_url"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Results   []Result      `json:"results"`
}

// OK reports whether no scenario failed.
func (s *Summary) OK() bool { return s.Failed == 0 }

// Observer receives run events, typically for metrics.
type Observer interface {
	ScenarioFinished(driver, status string, d time.Duration)
	SettleObserved(elapsed time.Duration, err error)
}

// Select returns the scenarios whose full name matches pattern (case
// insensitive). An empty pattern selects everything.
func Select(scenarios []Scenario, pattern string) ([]Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario filter %q: %w", pattern, err)
	}
	var out []Scenario
	for _, sc := range scenarios {
		if re.MatchString(sc.FullName()) {
			out = append(out, sc)
		}
	}
	return out, nil
}

var errFailFast = errors.New("stopping after first failure")

// Runner executes scenarios on a bounded pool, one fresh driver per scenario.
type Runner struct {
	cfg      config.Interface
	factory  DriverFactory
	logger   *zap.Logger
	limiter  *rate.Limiter
	observer Observer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver registers an observer for scenario and settle events.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a runner. Browser launches are paced by suite.launch_rate
// per second; zero means unpaced.
func NewRunner(cfg config.Interface, factory DriverFactory, logger *zap.Logger, opts ...RunnerOption) *Runner {
	limit := rate.Inf
	burst := 1
	if lr := cfg.Suite().LaunchRate; lr > 0 {
		limit = rate.Limit(lr)
		burst = max(1, int(math.Ceil(lr)))
	}
	r := &Runner{
		cfg:     cfg,
		factory: factory,
		logger:  logger.Named("runner"),
		limiter: rate.NewLimiter(limit, burst),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenarios and returns every result in input order. The
// error is non-nil only when ctx ends the run early; failed scenarios are
// reported in the summary.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Summary, error) {
	suiteCfg := r.cfg.Suite()
	summary := &Summary{
		RunID:     uuid.New().String(),
		BaseURL:   suiteCfg.BaseURL,
		StartedAt: time.Now(),
		Results:   make([]Result, len(scenarios)),
	}
	logger := r.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("Starting run.", zap.Int("scenarios", len(scenarios)), zap.Int("concurrency", suiteCfg.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(suiteCfg.Concurrency)

	var mu sync.Mutex
	for i, sc := range scenarios {
		g.Go(func() error {
			res := r.runScenario(gctx, sc, logger)
			mu.Lock()
			summary.Results[i] = res
			mu.Unlock()
			if res.Status == StatusFailed && suiteCfg.FailFast {
				return errFailFast
			}
			return nil
		})
	}
	err := g.Wait()

	for _, res := range summary.Results {
		switch res.Status {
		case StatusPassed:
			summary.Passed++
		case StatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	summary.Total = len(scenarios)
	summary.Duration = time.Since(summary.StartedAt)

	logger.Info("Run finished.",
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return summary, ctxErr
	}
	if err != nil && !errors.Is(err, errFailFast) {
		return summary, err
	}
	return summary, nil
}

// driverFor picks the driver kind for sc, or explains why it cannot run.
func (r *Runner) driverFor(sc Scenario) (string, string) {
	configured := r.cfg.Browser().Driver
	switch sc.Driver {
	case DriverStatic:
		return "static", ""
	case DriverJS:
		if configured == "static" {
			return configured, "requires JavaScript"
		}
	}
	return configured, ""
}

func (r *Runner) runScenario(ctx context.Context, sc Scenario, logger *zap.Logger) (res Result) {
	res = Result{Feature: sc.Feature, Name: sc.Name, StartedAt: time.Now()}
	kind, skip := r.driverFor(sc)
	res.Driver = kind

	defer func() {
		res.Duration = time.Since(res.StartedAt)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		if r.observer != nil {
			r.observer.ScenarioFinished(res.Driver, string(res.Status), res.Duration)
		}
	}()

	if skip != "" {
		res.Status, res.Error = StatusSkipped, skip
		return res
	}
	if ctx.Err() != nil {
		res.Status, res.Error = StatusSkipped, "run cancelled before start"
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Suite().ScenarioTimeout)
	defer cancel()

	if kind == "chrome" {
		if err := r.limiter.Wait(ctx); err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("waiting for a browser launch slot: %w", err)
			return res
		}
	}

	drv, probe, err := r.factory.NewDriver(ctx, kind)
	if err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("failed to start %s driver: %w", kind, err)
		return res
	}

	opts := SessionOptions(r.cfg)
	opts.Probe = probe
	opts.AllowJSErrors = sc.AllowJSErrors
	if r.observer != nil {
		opts.OnSettle = r.observer.SettleObserved
	}
	session, err := harness.NewSession(drv, opts, logger)
	if err != nil {
		_ = drv.Close(context.WithoutCancel(ctx))
		res.Status, res.Err = StatusFailed, err
		return res
	}
	res.SessionID = session.ID()
	defer func() {
		// The scenario context may be spent; closing must still reach the browser.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = session.Close(closeCtx)
	}()

	scLog := logger.With(zap.String("scenario", sc.FullName()), zap.String("session_id", session.ID()))
	scLog.Debug("Scenario started.", zap.String("driver", kind))

	for _, step := range sc.Steps {
		if err := step.Run(ctx, session); err != nil {
			res.Status, res.FailedStep, res.Err = StatusFailed, step.Name, err
			scLog.Warn("Scenario failed.", zap.String("step", step.Name), zap.Error(err))
			return res
		}
	}
	if err := session.Finish(ctx); err != nil {
		res.Status, res.FailedStep, res.Err = StatusFailed, "finish", err
		scLog.Warn("Scenario failed.", zap.String("step", "finish"), zap.Error(err))
		return res
	}
	res.Status = StatusPassed
	scLog.Info("Scenario passed.", zap.Duration("elapsed", time.Since(res.StartedAt)))
	return res
}
