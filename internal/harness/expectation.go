// internal/harness/expectation.go
package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Mode is the comparison an Expectation applies.
type Mode int

const (
	// ModeContains passes when the observed text contains the expected text.
	ModeContains Mode = iota
	// ModeExact passes when the observed text equals the expected text.
	ModeExact
	// ModeRegex passes when the observed text matches the expected pattern.
	ModeRegex
	// ModeCSSExists passes when at least one node was observed.
	ModeCSSExists
)

func (m Mode) String() string {
	switch m {
	case ModeContains:
		return "contains"
	case ModeExact:
		return "exact"
	case ModeRegex:
		return "regex"
	case ModeCSSExists:
		return "css"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) verb() string {
	switch m {
	case ModeExact:
		return "equal"
	case ModeRegex:
		return "match"
	default:
		return "contain"
	}
}

// maxNearestFragments bounds the diagnostic search on very large pages.
const maxNearestFragments = 500

// Expectation pairs observed values with an expected literal. It is evaluated
// by Check and has no side effects.
type Expectation struct {
	Selector  string
	Scope     Scope
	Observed  []string
	Expected  string
	Mode      Mode
	Negated   bool
	Normalize bool
}

// Check evaluates the expectation. It returns nil on success and an
// *AssertionFailure otherwise. A regex that does not compile is reported as an error.
func (e Expectation) Check() error {
	matched, err := e.matches()
	if err != nil {
		return err
	}
	if matched != e.Negated {
		return nil
	}

	failure := &AssertionFailure{
		Selector: e.Selector,
		Scope:    e.Scope,
		Expected: e.Expected,
		Actual:   e.normalized(),
		Mode:     e.Mode,
		Negated:  e.Negated,
	}
	if !e.Negated && e.Mode != ModeCSSExists {
		failure.Nearest = nearestMatch(e.Expected, e.Observed)
	}
	return failure
}

func (e Expectation) matches() (bool, error) {
	if e.Mode == ModeCSSExists {
		return len(e.Observed) > 0, nil
	}

	var re *regexp.Regexp
	if e.Mode == ModeRegex {
		var err error
		if re, err = regexp.Compile(e.Expected); err != nil {
			return false, fmt.Errorf("invalid text pattern %q: %w", e.Expected, err)
		}
	}
	want := e.Expected
	if e.Normalize {
		want = NormalizeSpace(want)
	}

	for _, observed := range e.normalized() {
		switch e.Mode {
		case ModeExact:
			if observed == want {
				return true, nil
			}
		case ModeRegex:
			if re.MatchString(observed) {
				return true, nil
			}
		default:
			if strings.Contains(observed, want) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e Expectation) normalized() []string {
	if !e.Normalize || e.Mode == ModeRegex {
		return e.Observed
	}
	out := make([]string, len(e.Observed))
	for i, s := range e.Observed {
		out[i] = NormalizeSpace(s)
	}
	return out
}

// nearestMatch returns the line of observed text closest to want by Levenshtein
// distance.
func nearestMatch(want string, observed []string) string {
	want = NormalizeSpace(want)
	if want == "" {
		return ""
	}

	dmp := diffmatchpatch.New()
	best, bestDist := "", -1
	seen := 0
	for _, text := range observed {
		for _, line := range strings.Split(text, "\n") {
			line = NormalizeSpace(line)
			if line == "" {
				continue
			}
			if seen++; seen > maxNearestFragments {
				return best
			}
			dist := dmp.DiffLevenshtein(dmp.DiffMain(want, line, false))
			if bestDist < 0 || dist < bestDist {
				best, bestDist = line, dist
			}
		}
	}
	return best
}
