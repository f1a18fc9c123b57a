// internal/harness/navigator.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"go.uber.org/zap"
)

// Visit loads path, resolved against the base URL. It fails with
// *NavigationError on transport failure, timeout, or an unrecoverable status.
func (s *Session) Visit(ctx context.Context, path string) error {
	return s.do(ctx, "visit", func(ctx context.Context) error {
		target, err := s.resolve(path)
		if err != nil {
			return &NavigationError{URL: path, Err: err}
		}

		navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
		defer cancel()

		s.logger.Debug("Visiting page.", zap.String("url", target))
		status, err := s.drv.Navigate(navCtx, target)
		if err != nil {
			if ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("timed out after %v: %w", s.opts.NavigationTimeout, err)
			}
			return &NavigationError{URL: target, Status: status, Err: err}
		}
		if s.unrecoverable(status) {
			return &NavigationError{URL: target, Status: status}
		}

		s.state = StateNavigated
		s.settled = false
		s.logger.Debug("Page loaded.", zap.String("url", target), zap.Int("status", status))
		return nil
	})
}

func (s *Session) resolve(path string) (string, error) {
	base, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", s.opts.BaseURL, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *Session) unrecoverable(status int) bool {
	if !s.opts.FailOnServerError || status < 500 {
		return false
	}
	return !slices.Contains(s.opts.ToleratedStatus, status)
}

// GoBack navigates one step back in history. It fails with *HistoryError when
// there is no prior entry. The page is unsettled afterwards.
func (s *Session) GoBack(ctx context.Context) error {
	return s.do(ctx, "go back", func(ctx context.Context) error {
		if err := s.requirePage(); err != nil {
			return err
		}
		if err := s.drv.Back(ctx); err != nil {
			return &HistoryError{Err: err}
		}
		s.state = StateNavigated
		s.settled = false
		return nil
	})
}

// ClickLink clicks the link identified by label.
func (s *Session) ClickLink(ctx context.Context, label string, opts ...LocateOption) error {
	return s.click(ctx, newLookup("link", linkCSS, label, opts))
}

// ClickButton clicks the button identified by label.
func (s *Session) ClickButton(ctx context.Context, label string, opts ...LocateOption) error {
	return s.click(ctx, newLookup("button", buttonCSS, label, opts))
}

func (s *Session) click(ctx context.Context, l lookup) error {
	return s.do(ctx, "click "+l.kind, func(ctx context.Context) error {
		if err := s.requirePage(); err != nil {
			return err
		}
		if err := s.ensureSettledLocked(ctx); err != nil {
			return err
		}
		el, err := s.locateLocked(ctx, l)
		if err != nil {
			return err
		}
		s.logger.Debug("Clicking element.", zap.String("kind", l.kind), zap.String("label", l.label))
		if err := s.drv.Click(ctx, el); err != nil {
			return fmt.Errorf("failed to click %s %q: %w", l.kind, l.label, err)
		}
		s.state = StateInteracting
		s.settled = false
		return nil
	})
}

// CurrentPath returns the path component of the current URL.
func (s *Session) CurrentPath(ctx context.Context) (string, error) {
	var path string
	err := s.do(ctx, "current path", func(ctx context.Context) error {
		if err := s.requirePage(); err != nil {
			return err
		}
		var err error
		path, err = s.currentPathLocked(ctx)
		return err
	})
	return path, err
}

func (s *Session) currentPathLocked(ctx context.Context) (string, error) {
	loc, err := s.drv.Location(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("failed to parse location %q: %w", loc, err)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

// ExpectPath asserts that the current path equals path.
func (s *Session) ExpectPath(ctx context.Context, path string) error {
	return s.do(ctx, "expect path", func(ctx context.Context) error {
		return s.expectLocked(ctx, func(ctx context.Context) error {
			got, err := s.currentPathLocked(ctx)
			if err != nil {
				return err
			}
			return Expectation{
				Selector: "current path",
				Observed: []string{got},
				Expected: path,
				Mode:     ModeExact,
			}.Check()
		})
	})
}
