// internal/harness/jserrors.go
package harness

import (
	"fmt"
	"regexp"
)

// AllowList holds the client-side error patterns a scenario tolerates. An empty
// list tolerates nothing; suppressing every error takes an explicit ".*".
type AllowList struct {
	patterns []*regexp.Regexp
}

// NewAllowList compiles the given patterns.
func NewAllowList(patterns ...string) (*AllowList, error) {
	a := &AllowList{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid js error pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, re)
	}
	return a, nil
}

// Allowed reports whether pe matches any pattern.
func (a *AllowList) Allowed(pe PageError) bool {
	for _, re := range a.patterns {
		if re.MatchString(pe.Message) {
			return true
		}
	}
	return false
}

// Unexpected returns the errors that match no pattern, in order.
func (a *AllowList) Unexpected(errs []PageError) []PageError {
	var out []PageError
	for _, pe := range errs {
		if !a.Allowed(pe) {
			out = append(out, pe)
		}
	}
	return out
}
