// internal/harness/errors.go
package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrNoHistory is returned by drivers when Back has no prior entry.
	ErrNoHistory = errors.New("no previous history entry")
	// ErrUnsettled is returned in strict ordering mode when an expectation is
	// evaluated before the page settled.
	ErrUnsettled = errors.New("expectation evaluated before the page settled")
	// ErrNoPage is returned when an operation needs a loaded page and none was visited.
	ErrNoPage = errors.New("no page has been visited")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrScriptUnsupported is returned by drivers that cannot run JavaScript.
	ErrScriptUnsupported = errors.New("driver does not execute JavaScript")
)

// NavigationError reports that a page could not be loaded.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("navigation to %s failed with status %d", e.URL, e.Status)
	}
	if e.Status != 0 {
		return fmt.Sprintf("navigation to %s failed (status %d): %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// HistoryError reports a failed history navigation.
type HistoryError struct {
	Err error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("history navigation failed: %v", e.Err)
}

func (e *HistoryError) Unwrap() error { return e.Err }

// ElementNotFoundError reports that a lookup matched nothing within its wait.
type ElementNotFoundError struct {
	Kind    string
	Locator string
	Scope   Scope
	Waited  time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("unable to find %s %q within %s (waited %v)", e.Kind, e.Locator, e.Scope, e.Waited)
}

// AmbiguousElementError reports that a lookup that needs one element matched several.
type AmbiguousElementError struct {
	Kind       string
	Locator    string
	Scope      Scope
	Count      int
	Candidates []string
}

func (e *AmbiguousElementError) Error() string {
	msg := fmt.Sprintf("ambiguous match for %s %q within %s: found %d elements", e.Kind, e.Locator, e.Scope, e.Count)
	if len(e.Candidates) > 0 {
		msg += " [" + strings.Join(e.Candidates, ", ") + "]"
	}
	return msg
}

// SettleTimeoutError reports that the page did not reach quiescence in time.
type SettleTimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
	Pending int
	// Cause is the last probe error, if the probe failed rather than reported work.
	Cause error
}

func (e *SettleTimeoutError) Error() string {
	msg := fmt.Sprintf("page did not settle within %v (elapsed %v, %d operations still pending)", e.Timeout, e.Elapsed.Round(time.Millisecond), e.Pending)
	if e.Cause != nil {
		msg += ": last probe error: " + e.Cause.Error()
	}
	return msg
}

func (e *SettleTimeoutError) Unwrap() error { return e.Cause }

// AssertionFailure reports a failed expectation.
type AssertionFailure struct {
	Selector string
	Scope    Scope
	Expected string
	Actual   []string
	Mode     Mode
	Negated  bool
	Nearest  string
}

func (e *AssertionFailure) Error() string {
	var b strings.Builder
	if e.Mode == ModeCSSExists {
		if e.Negated {
			fmt.Fprintf(&b, "expected no element matching %q", e.Selector)
		} else {
			fmt.Fprintf(&b, "expected an element matching %q", e.Selector)
		}
		if e.Expected != "" {
			fmt.Fprintf(&b, " with text %s", e.Expected)
		}
		fmt.Fprintf(&b, " within %s, found %d", e.Scope, len(e.Actual))
		return b.String()
	}

	not := ""
	if e.Negated {
		not = "not "
	}
	fmt.Fprintf(&b, "expected %s text to %s%s %q", e.Scope, not, e.Mode.verb(), e.Expected)
	if e.Selector != "" {
		fmt.Fprintf(&b, " (selector %q)", e.Selector)
	}
	switch len(e.Actual) {
	case 0:
		b.WriteString(", but no node matched the scope")
	case 1:
		fmt.Fprintf(&b, ", actual: %q", truncate(e.Actual[0], 300))
	default:
		fmt.Fprintf(&b, ", actual (%d nodes): %q", len(e.Actual), truncate(e.Actual[0], 200))
	}
	if e.Nearest != "" && !e.Negated {
		fmt.Fprintf(&b, "; nearest match: %q", truncate(e.Nearest, 200))
	}
	return b.String()
}

// PageErrorsError reports client-side errors that no allow-list pattern matched.
type PageErrorsError struct {
	Errors []PageError
}

func (e *PageErrorsError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		msgs = append(msgs, truncate(pe.Message, 200))
	}
	return fmt.Sprintf("%d unexpected client-side error(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
