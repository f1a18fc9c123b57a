// internal/harness/expect.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// expectLocked settles the page if needed, then evaluates check until it passes
// or AssertWait runs out. The last evaluation is the reported result.
func (s *Session) expectLocked(ctx context.Context, check func(ctx context.Context) error) error {
	if err := s.requirePage(); err != nil {
		return err
	}
	if err := s.ensureSettledLocked(ctx); err != nil {
		return err
	}
	s.state = StateAsserting

	var last error
	cond := WaitCondition{
		Timeout:  s.opts.AssertWait,
		Interval: s.opts.SettleInterval,
		Predicate: func(ctx context.Context) (bool, error) {
			last = check(ctx)
			var failure *AssertionFailure
			if last != nil && errors.As(last, &failure) {
				return false, nil
			}
			if last != nil && ctx.Err() != nil {
				return false, last
			}
			// Success, or an error that retrying cannot fix.
			return true, nil
		},
	}
	if waited, err := cond.Wait(ctx); err != nil {
		var wt *waitTimeoutError
		if !errors.As(err, &wt) {
			return err
		}
		var failure *AssertionFailure
		if last != nil && !errors.As(last, &failure) {
			return fmt.Errorf("expectation not evaluated within %v: %w", waited, last)
		}
	}
	if last != nil {
		s.logger.Debug("Expectation failed.", zap.Error(last))
	}
	return last
}

func (s *Session) observeText(ctx context.Context, q Query) ([]string, error) {
	els, err := s.drv.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Scope, err)
	}
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.Text
	}
	return out, nil
}

// ExpectText asserts that a node matched by scope has text satisfying mode. An
// empty scope means the document body.
func (s *Session) ExpectText(ctx context.Context, scope Scope, text string, mode Mode) error {
	return s.expectText(ctx, scope, text, mode, false)
}

// ExpectNoText asserts that no node matched by scope has text satisfying mode.
func (s *Session) ExpectNoText(ctx context.Context, scope Scope, text string, mode Mode) error {
	return s.expectText(ctx, scope, text, mode, true)
}

func (s *Session) expectText(ctx context.Context, scope Scope, text string, mode Mode, negated bool) error {
	op := "expect text"
	if negated {
		op = "expect no text"
	}
	return s.do(ctx, op, func(ctx context.Context) error {
		if mode == ModeCSSExists {
			return fmt.Errorf("text expectation cannot use mode %s", mode)
		}
		return s.expectLocked(ctx, func(ctx context.Context) error {
			observed, err := s.observeText(ctx, Query{Scope: scope})
			if err != nil {
				return err
			}
			return Expectation{
				Scope:     scope,
				Observed:  observed,
				Expected:  text,
				Mode:      mode,
				Negated:   negated,
				Normalize: s.opts.NormalizeWhitespace,
			}.Check()
		})
	})
}

// CSSOption refines ExpectCSS.
type CSSOption func(*cssConfig)

type cssConfig struct {
	scope         Scope
	text          string
	includeHidden bool
}

// WithText requires the matched element's text to match pattern.
func WithText(pattern string) CSSOption {
	return func(c *cssConfig) { c.text = pattern }
}

// IncludeHidden lets ExpectCSS match elements that are not rendered, such as
// the document title.
func IncludeHidden() CSSOption {
	return func(c *cssConfig) { c.includeHidden = true }
}

// CSSWithin restricts ExpectCSS to descendants of scope.
func CSSWithin(scope Scope) CSSOption {
	return func(c *cssConfig) { c.scope = scope }
}

// ExpectCSS asserts that at least one element matches selector. It has no side
// effects on the page, so repeating it yields the same outcome.
func (s *Session) ExpectCSS(ctx context.Context, selector string, opts ...CSSOption) error {
	return s.expectCSS(ctx, selector, false, opts)
}

// ExpectNoCSS asserts that no element matches selector.
func (s *Session) ExpectNoCSS(ctx context.Context, selector string, opts ...CSSOption) error {
	return s.expectCSS(ctx, selector, true, opts)
}

func (s *Session) expectCSS(ctx context.Context, selector string, negated bool, opts []CSSOption) error {
	var cfg cssConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return s.do(ctx, "expect css", func(ctx context.Context) error {
		var re *regexp.Regexp
		if cfg.text != "" {
			var err error
			if re, err = regexp.Compile(cfg.text); err != nil {
				return fmt.Errorf("invalid text pattern %q: %w", cfg.text, err)
			}
		}
		return s.expectLocked(ctx, func(ctx context.Context) error {
			els, err := s.drv.Find(ctx, Query{Scope: cfg.scope, CSS: selector, IncludeHidden: cfg.includeHidden})
			if err != nil {
				return fmt.Errorf("failed to query %q: %w", selector, err)
			}
			observed := make([]string, 0, len(els))
			for _, el := range els {
				if re == nil || re.MatchString(el.Text) {
					observed = append(observed, el.Text)
				}
			}
			return Expectation{
				Selector: selector,
				Scope:    cfg.scope,
				Observed: observed,
				Expected: cfg.text,
				Mode:     ModeCSSExists,
				Negated:  negated,
			}.Check()
		})
	})
}

// ExpectHTMLContains asserts that the serialized document contains substr verbatim.
func (s *Session) ExpectHTMLContains(ctx context.Context, substr string) error {
	return s.do(ctx, "expect html", func(ctx context.Context) error {
		return s.expectLocked(ctx, func(ctx context.Context) error {
			html, err := s.drv.HTML(ctx)
			if err != nil {
				return fmt.Errorf("failed to read document html: %w", err)
			}
			if strings.Contains(html, substr) {
				return nil
			}
			return &AssertionFailure{
				Selector: "html",
				Expected: substr,
				Actual:   []string{html},
				Mode:     ModeContains,
				Nearest:  nearestMatch(substr, []string{html}),
			}
		})
	})
}

// Text returns the text of the single node matched by scope.
func (s *Session) Text(ctx context.Context, scope Scope) (string, error) {
	var text string
	err := s.do(ctx, "text", func(ctx context.Context) error {
		if err := s.requirePage(); err != nil {
			return err
		}
		if err := s.ensureSettledLocked(ctx); err != nil {
			return err
		}
		l := newLookup("element", "", "", []LocateOption{InScope(scope)})
		l.locator = scope.String()
		el, err := s.locateLocked(ctx, l)
		if err != nil {
			return err
		}
		text = el.Text
		if s.opts.NormalizeWhitespace {
			text = NormalizeSpace(text)
		}
		return nil
	})
	return text, err
}

// FillInput replaces the value of the single text field within scope. The
// driver fires the input and change events a user edit would.
func (s *Session) FillInput(ctx context.Context, scope Scope, value string) error {
	return s.do(ctx, "fill input", func(ctx context.Context) error {
		if err := s.requirePage(); err != nil {
			return err
		}
		if err := s.ensureSettledLocked(ctx); err != nil {
			return err
		}
		l := newLookup("field", fieldCSS, "", []LocateOption{InScope(scope)})
		l.locator = scope.String()
		el, err := s.locateLocked(ctx, l)
		if err != nil {
			return err
		}
		s.logger.Debug("Filling input.", zap.Stringer("scope", scope), zap.Int("value_length", len(value)))
		if err := s.drv.SetValue(ctx, el, value); err != nil {
			return fmt.Errorf("failed to fill input within %s: %w", scope, err)
		}
		s.state = StateInteracting
		s.settled = false
		return nil
	})
}
