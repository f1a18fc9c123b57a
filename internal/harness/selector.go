// internal/harness/selector.go
package harness

import (
	"strings"
	"unicode"
)

// Scope is a chain of CSS selectors, outermost first. It mirrors nested "within"
// blocks: each level matches zero or more nodes below the previous level.
type Scope []string

// Within builds a Scope from the given selectors.
func Within(selectors ...string) Scope {
	return Scope(selectors)
}

// Document is the empty scope: the whole document body.
var Document = Scope(nil)

// Append returns a new Scope with sel nested inside s.
func (s Scope) Append(sel string) Scope {
	out := make(Scope, 0, len(s)+1)
	out = append(out, s...)
	return append(out, sel)
}

func (s Scope) String() string {
	if len(s) == 0 {
		return "document"
	}
	return strings.Join(s, " >> ")
}

// NormalizeSpace trims s and collapses every run of whitespace into one space.
func NormalizeSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
