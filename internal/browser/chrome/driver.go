// internal/browser/chrome/driver.go
package chrome

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// actionTimeout bounds a single click or keyboard interaction.
const actionTimeout = 15 * time.Second

// Driver is a harness.Driver backed by one tab of a dedicated Chrome process.
type Driver struct {
	tabCtx context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	events *listener

	mu     sync.Mutex
	closed bool
}

var _ harness.Driver = (*Driver)(nil)

// New launches a browser and opens a tab. The browser lives until Close; ctx
// only bounds the launch.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	logger = logger.Named("chrome")

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	d := &Driver{
		tabCtx: tabCtx,
		cancel: cancel,
		logger: logger,
		events: newListener(logger),
	}
	d.events.attach(tabCtx)

	// The first Run starts the browser and must use the tab context itself;
	// cancelling a derived context there would tear the browser down.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx,
			network.Enable(),
			runtime.Enable(),
			log.Enable(),
			page.Enable(),
		)
	}()

	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		cancel()
		<-started
		return nil, fmt.Errorf("browser launch aborted: %w", ctx.Err())
	}

	logger.Debug("Browser started.")
	return d, nil
}

// NetworkProbe reports the number of in-flight network requests of the tab.
func (d *Driver) NetworkProbe() harness.PendingProbe {
	return d.events
}

// withTab derives the context chromedp calls run under: the tab's values,
// bounded by ctx.
func (d *Driver) withTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, nil, harness.ErrSessionClosed
	}
	runCtx, cancel := CombineContext(d.tabCtx, ctx)
	return runCtx, cancel, nil
}

// precedence prefers the caller's context error over whatever chromedp reports.
func (d *Driver) precedence(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if d.tabCtx.Err() != nil {
		return fmt.Errorf("browser tab is gone: %w", err)
	}
	return err
}

// run executes actions on the tab, bounded by ctx.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel, err := d.withTab(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return d.precedence(ctx, chromedp.Run(runCtx, actions...))
}

// Navigate implements harness.Driver.
func (d *Driver) Navigate(ctx context.Context, url string) (int, error) {
	runCtx, cancel, err := d.withTab(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	d.events.resetNetwork()
	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	err = d.precedence(ctx, err)
	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if err != nil {
		return status, err
	}
	d.logger.Debug("Navigated.", zap.String("url", url), zap.Int("status", status))
	return status, nil
}

// Back implements harness.Driver. Same-document entries pushed by client-side
// routers are replayed like any other entry.
func (d *Driver) Back(ctx context.Context) error {
	var (
		current int64
		entries []*page.NavigationEntry
	)
	err := d.run(ctx, chromedp.ActionFunc(func(runCtx context.Context) error {
		var err error
		current, entries, err = page.GetNavigationHistory().Do(runCtx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read navigation history: %w", err)
	}
	if current <= 0 || current > int64(len(entries)-1) {
		return harness.ErrNoHistory
	}

	return d.run(ctx,
		page.NavigateToHistoryEntry(entries[current-1].ID),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Location implements harness.Driver.
func (d *Driver) Location(ctx context.Context) (string, error) {
	var loc string
	if err := d.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Find implements harness.Driver.
func (d *Driver) Find(ctx context.Context, q harness.Query) ([]harness.Element, error) {
	expr, err := findExpression(q)
	if err != nil {
		return nil, err
	}
	var els []harness.Element
	if err := d.Evaluate(ctx, expr, &els); err != nil {
		return nil, err
	}
	return els, nil
}

// HTML implements harness.Driver.
func (d *Driver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Evaluate implements harness.Driver.
func (d *Driver) Evaluate(ctx context.Context, expr string, res any) error {
	return d.run(ctx, chromedp.Evaluate(expr, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
}

// Click implements harness.Driver with a real mouse click.
func (d *Driver) Click(ctx context.Context, el harness.Element) error {
	opCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	err := d.run(opCtx,
		chromedp.ScrollIntoView(el.Ref, chromedp.ByQuery),
		chromedp.Click(el.Ref, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("click on <%s> timed out after %v (element detached?): %w", el.Tag, actionTimeout, err)
		}
		return err
	}
	return nil
}

// SetValue implements harness.Driver: the field is cleared, then the value is
// typed key by key.
func (d *Driver) SetValue(ctx context.Context, el harness.Element, value string) error {
	opCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	clearExpr, err := refExpression(clearScript, el.Ref)
	if err != nil {
		return err
	}
	changeExpr, err := refExpression(changeScript, el.Ref)
	if err != nil {
		return err
	}

	var cleared bool
	if err := d.run(opCtx,
		chromedp.ScrollIntoView(el.Ref, chromedp.ByQuery),
		chromedp.Evaluate(clearExpr, &cleared),
	); err != nil {
		return fmt.Errorf("failed to clear field: %w", err)
	}
	if !cleared {
		return fmt.Errorf("failed to clear field <%s>: element is gone, disabled or read-only", el.Tag)
	}

	var changed bool
	if err := d.run(opCtx,
		chromedp.SendKeys(el.Ref, value, chromedp.ByQuery),
		chromedp.Evaluate(changeExpr, &changed),
	); err != nil {
		return fmt.Errorf("failed to type into field: %w", err)
	}
	if !changed {
		return fmt.Errorf("failed to fire change on field <%s>: element is gone", el.Tag)
	}
	return nil
}

// PageErrors implements harness.Driver.
func (d *Driver) PageErrors() []harness.PageError {
	return d.events.pageErrors()
}

// Close implements harness.Driver. It ends the browser process.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		// Closing the tab context first lets chromedp shut the browser down cleanly.
		done <- chromedp.Cancel(d.tabCtx)
	}()

	select {
	case err := <-done:
		d.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Debug("Browser did not close cleanly.", zap.Error(err))
		}
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
	d.logger.Debug("Browser closed.")
	return nil
}
