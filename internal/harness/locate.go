// internal/harness/locate.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	linkCSS   = `a[href]`
	buttonCSS = `button, input[type="submit"], input[type="button"], input[type="reset"], input[type="image"]`
	fieldCSS  = `textarea, input:not([type]), input[type="text"], input[type="search"], input[type="email"], ` +
		`input[type="url"], input[type="tel"], input[type="password"], input[type="number"]`
)

// LocateOption narrows an element lookup.
type LocateOption func(*locateConfig)

type locateConfig struct {
	scope Scope
	nth   int
}

// InScope restricts the lookup to descendants of scope.
func InScope(scope Scope) LocateOption {
	return func(c *locateConfig) { c.scope = scope }
}

// Nth picks the n-th (1-based) match instead of failing on ambiguity.
func Nth(n int) LocateOption {
	return func(c *locateConfig) { c.nth = n }
}

// lookup describes one element search.
type lookup struct {
	kind    string
	css     string
	label   string
	locator string
	cfg     locateConfig
}

func newLookup(kind, css, label string, opts []LocateOption) lookup {
	l := lookup{kind: kind, css: css, label: label, locator: label}
	for _, opt := range opts {
		opt(&l.cfg)
	}
	return l
}

// locateLocked waits up to LookupTimeout for exactly one element to match l.
func (s *Session) locateLocked(ctx context.Context, l lookup) (Element, error) {
	var (
		found     Element
		ambiguous *AmbiguousElementError
	)
	cond := WaitCondition{
		Timeout:  s.opts.LookupTimeout,
		Interval: s.opts.SettleInterval,
		Predicate: func(ctx context.Context) (bool, error) {
			els, err := s.drv.Find(ctx, Query{Scope: l.cfg.scope, CSS: l.css})
			if err != nil {
				return false, err
			}
			matches := matchLabel(els, l.label)
			switch {
			case len(matches) == 0:
				return false, nil
			case l.cfg.nth > 0:
				if len(matches) < l.cfg.nth {
					return false, nil
				}
				found = matches[l.cfg.nth-1]
				return true, nil
			case len(matches) == 1:
				found = matches[0]
				return true, nil
			default:
				ambiguous = &AmbiguousElementError{
					Kind:       l.kind,
					Locator:    l.locator,
					Scope:      l.cfg.scope,
					Count:      len(matches),
					Candidates: describe(matches, 5),
				}
				return true, nil
			}
		},
	}

	waited, err := cond.Wait(ctx)
	if err != nil {
		var wt *waitTimeoutError
		if errors.As(err, &wt) {
			if wt.lastErr != nil {
				s.logger.Debug("Lookup failed while polling.", zap.String("kind", l.kind), zap.Error(wt.lastErr))
			}
			return Element{}, &ElementNotFoundError{Kind: l.kind, Locator: l.locator, Scope: l.cfg.scope, Waited: waited}
		}
		return Element{}, err
	}
	if ambiguous != nil {
		return Element{}, ambiguous
	}
	return found, nil
}

// matchLabel returns the elements whose label equals label, or failing that the
// ones whose label contains it. An empty label matches everything.
func matchLabel(els []Element, label string) []Element {
	want := NormalizeSpace(label)
	if want == "" {
		return els
	}
	var exact, partial []Element
	for _, el := range els {
		isExact, isPartial := false, false
		for _, l := range labelsOf(el) {
			if l == want {
				isExact = true
				break
			}
			if strings.Contains(l, want) {
				isPartial = true
			}
		}
		switch {
		case isExact:
			exact = append(exact, el)
		case isPartial:
			partial = append(partial, el)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

// labelsOf lists the strings a user could identify el by.
func labelsOf(el Element) []string {
	out := make([]string, 0, 6)
	for _, v := range []string{el.Text, el.Value, el.Attr("id"), el.Attr("title"), el.Attr("alt"), el.Attr("aria-label")} {
		if v = NormalizeSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func describe(els []Element, limit int) []string {
	out := make([]string, 0, min(len(els), limit))
	for i, el := range els {
		if i == limit {
			break
		}
		label := ""
		if ls := labelsOf(el); len(ls) > 0 {
			label = truncate(ls[0], 40)
		}
		out = append(out, fmt.Sprintf("<%s> %q", el.Tag, label))
	}
	return out
}
