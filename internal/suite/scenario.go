// internal/suite/scenario.go
package suite

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// Driver requirements a scenario can declare.
const (
	// DriverAny runs on whatever driver the suite is configured with.
	DriverAny = ""
	// DriverJS needs a driver that executes scripts.
	DriverJS = "js"
	// DriverStatic always runs on the static driver, with scripts disabled.
	DriverStatic = "static"
)

// Step is one action or expectation of a scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, s *harness.Session) error
}

// Scenario is one regression case. Steps run in order against a fresh session.
type Scenario struct {
	Feature string
	Name    string
	Driver  string
	// AllowJSErrors are patterns of client-side errors the scenario tolerates.
	AllowJSErrors []string
	Steps         []Step
}

// FullName is the feature and scenario name, as matched by filters.
func (sc Scenario) FullName() string {
	if sc.Name == "" {
		return sc.Feature
	}
	return sc.Feature + " " + sc.Name
}

// -- Step builders --

func Visit(path string) Step {
	return Step{"visit " + path, func(ctx context.Context, s *harness.Session) error {
		return s.Visit(ctx, path)
	}}
}

func GoBack() Step {
	return Step{"go back", func(ctx context.Context, s *harness.Session) error {
		return s.GoBack(ctx)
	}}
}

func ClickLink(label string) Step {
	return Step{fmt.Sprintf("click link %q", label), func(ctx context.Context, s *harness.Session) error {
		return s.ClickLink(ctx, label)
	}}
}

func ClickButtonWithin(scope harness.Scope, label string) Step {
	return Step{fmt.Sprintf("click button %q within %s", label, scope), func(ctx context.Context, s *harness.Session) error {
		return s.ClickButton(ctx, label, harness.InScope(scope))
	}}
}

// Settle waits for pending asynchronous work, like an explicit wait for ajax.
func Settle() Step {
	return Step{"settle", func(ctx context.Context, s *harness.Session) error {
		return s.Settle(ctx)
	}}
}

func HasText(text string) Step {
	return Step{fmt.Sprintf("has text %q", text), func(ctx context.Context, s *harness.Session) error {
		return s.ExpectText(ctx, harness.Document, text, harness.ModeContains)
	}}
}

func HasNoText(text string) Step {
	return Step{fmt.Sprintf("has no text %q", text), func(ctx context.Context, s *harness.Session) error {
		return s.ExpectNoText(ctx, harness.Document, text, harness.ModeContains)
	}}
}

func HasCSS(selector string, opts ...harness.CSSOption) Step {
	return Step{"has css " + selector, func(ctx context.Context, s *harness.Session) error {
		return s.ExpectCSS(ctx, selector, opts...)
	}}
}

func HTMLIncludes(substr string) Step {
	return Step{fmt.Sprintf("html includes %q", substr), func(ctx context.Context, s *harness.Session) error {
		return s.ExpectHTMLContains(ctx, substr)
	}}
}

func CurrentPathIs(path string) Step {
	return Step{"current path is " + path, func(ctx context.Context, s *harness.Session) error {
		return s.ExpectPath(ctx, path)
	}}
}

// NodeTextIs reads the text of the single node matching css and compares it
// exactly.
func NodeTextIs(css, want string) Step {
	return Step{fmt.Sprintf("%s text is %q", css, want), func(ctx context.Context, s *harness.Session) error {
		scope := harness.Within(css)
		got, err := s.Text(ctx, scope)
		if err != nil {
			return err
		}
		if harness.NormalizeSpace(got) != want {
			return &harness.AssertionFailure{
				Selector: css,
				Scope:    scope,
				Expected: want,
				Actual:   []string{got},
				Mode:     harness.ModeExact,
			}
		}
		return nil
	}}
}

func Fill(scope harness.Scope, value string) Step {
	return Step{fmt.Sprintf("fill %s with %q", scope, value), func(ctx context.Context, s *harness.Session) error {
		return s.FillInput(ctx, scope, value)
	}}
}

func HasTextWithin(scope harness.Scope, text string) Step {
	return Step{fmt.Sprintf("%s has text %q", scope, text), func(ctx context.Context, s *harness.Session) error {
		return s.ExpectText(ctx, scope, text, harness.ModeContains)
	}}
}

// ChangeName types a new name into the component's input and expects its
// greeting to follow.
func ChangeName(component, name string) []Step {
	return []Step{
		Fill(harness.Within(component), name),
		HasTextWithin(harness.Within(component, "h3"), name),
	}
}

// Steps flattens step groups.
func Steps(groups ...any) []Step {
	var out []Step
	for _, g := range groups {
		switch v := g.(type) {
		case Step:
			out = append(out, v)
		case []Step:
			out = append(out, v...)
		default:
			panic(fmt.Sprintf("suite: unsupported step group %T", g))
		}
	}
	return out
}
