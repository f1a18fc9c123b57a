// internal/harness/driver.go
package harness

import (
	"context"
	"time"
)

// Driver is the browser automation boundary. A Driver controls exactly one tab in
// one browser instance and is owned by exactly one Session.
//
// Element values returned by Find are snapshots. Their Ref is only valid until the
// next navigation.
type Driver interface {
	// Navigate loads the absolute URL and returns the HTTP status of the main
	// document response (0 when the driver cannot observe it).
	Navigate(ctx context.Context, url string) (int, error)
	// Back replays one step of history. It returns ErrNoHistory when there is no
	// prior entry.
	Back(ctx context.Context) error
	// Location returns the current absolute URL.
	Location(ctx context.Context) (string, error)
	// Find returns the elements matched by q, in document order.
	Find(ctx context.Context, q Query) ([]Element, error)
	// HTML returns the serialized HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression and decodes its result into res.
	Evaluate(ctx context.Context, expr string, res any) error
	// Click activates the element.
	Click(ctx context.Context, el Element) error
	// SetValue replaces the value of a text-capable element and fires the events
	// the platform fires for user input.
	SetValue(ctx context.Context, el Element, value string) error
	// PageErrors returns the client-side errors observed since the driver started.
	PageErrors() []PageError
	// Close releases the browser resources. It is safe to call more than once.
	Close(ctx context.Context) error
}

// PendingProbe reports the number of asynchronous operations the page still has
// in flight.
type PendingProbe interface {
	Pending(ctx context.Context) (int, error)
}

// PendingProbeFunc adapts a function to the PendingProbe interface.
type PendingProbeFunc func(ctx context.Context) (int, error)

// Pending implements PendingProbe.
func (f PendingProbeFunc) Pending(ctx context.Context) (int, error) { return f(ctx) }

// Query selects elements. Scope is applied level by level with descendant
// semantics; CSS is then matched inside the scope. An empty CSS selects the scope
// nodes themselves, or the document body when Scope is empty too.
type Query struct {
	Scope         Scope
	CSS           string
	IncludeHidden bool
}

// Element is a driver snapshot of a DOM node.
type Element struct {
	Ref     string            `json:"ref"`
	Tag     string            `json:"tag"`
	Text    string            `json:"text"`
	Value   string            `json:"value"`
	Visible bool              `json:"visible"`
	Attrs   map[string]string `json:"attrs"`
}

// Attr returns the named attribute or "".
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// PageError is a client-side error observed by a driver.
type PageError struct {
	Message string    `json:"message"`
	Source  string    `json:"source"`
	At      time.Time `json:"at"`
}
