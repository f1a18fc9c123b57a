// internal/suite/factory.go
package suite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rehydrate/internal/browser/chrome"
	"github.com/xkilldash9x/rehydrate/internal/browser/static"
	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// DriverFactory builds a fresh driver for one scenario. The returned probe may
// be nil, in which case the session picks one itself.
type DriverFactory interface {
	NewDriver(ctx context.Context, kind string) (harness.Driver, harness.PendingProbe, error)
}

// BrowserFactory launches real drivers from configuration. Every Chrome driver
// is an independent browser process.
type BrowserFactory struct {
	cfg    config.Interface
	logger *zap.Logger
}

// NewBrowserFactory creates a factory for the configured browser and settle probe.
func NewBrowserFactory(cfg config.Interface, logger *zap.Logger) *BrowserFactory {
	return &BrowserFactory{cfg: cfg, logger: logger}
}

// NewDriver implements DriverFactory.
func (f *BrowserFactory) NewDriver(ctx context.Context, kind string) (harness.Driver, harness.PendingProbe, error) {
	switch kind {
	case "static":
		d, err := static.New(f.cfg.Browser(), f.logger)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil
	case "chrome":
		d, err := chrome.New(ctx, f.cfg.Browser(), f.logger)
		if err != nil {
			return nil, nil, err
		}
		if f.cfg.Settle().Probe == "network" {
			return d, d.NetworkProbe(), nil
		}
		return d, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", kind)
	}
}

// SessionOptions maps configuration onto harness session options.
func SessionOptions(cfg config.Interface) harness.Options {
	b, st, a := cfg.Browser(), cfg.Settle(), cfg.Assert()
	return harness.Options{
		BaseURL:             cfg.Suite().BaseURL,
		NavigationTimeout:   b.NavigationTimeout,
		FailOnServerError:   b.FailOnServerError,
		ToleratedStatus:     b.ToleratedStatus,
		SettleTimeout:       st.Timeout,
		SettleInterval:      st.Interval,
		SettleRecheck:       st.Recheck,
		PendingExpression:   st.PendingExpression,
		AssertWait:          a.Wait,
		LookupTimeout:       a.LookupTimeout,
		NormalizeWhitespace: a.NormalizeWhitespace,
		StrictOrdering:      a.StrictOrdering,
	}
}
