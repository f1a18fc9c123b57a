// internal/harness/fake_driver_test.go
package harness

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
)

// fakePage is a canned document: query results keyed by queryKey.
type fakePage struct {
	status int
	html   string
	nodes  map[string][]Element
}

// fakeDriver is an in-memory Driver. Pages are keyed by path.
type fakeDriver struct {
	mu sync.Mutex

	pages   map[string]*fakePage
	history []string
	current *fakePage

	navigateErr error
	pending     []int
	probes      int
	events      []string
	clicks      []Element
	values      map[string]string
	pageErrors  []PageError
	closed      int

	onClick    func(d *fakeDriver, el Element)
	onSetValue func(d *fakeDriver, el Element, value string)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{pages: map[string]*fakePage{}, values: map[string]string{}}
}

func queryKey(scope Scope, css string) string {
	return scope.String() + " | " + css
}

// page registers a document at path and returns it for node setup.
func (d *fakeDriver) page(path string) *fakePage {
	p := &fakePage{status: 200, nodes: map[string][]Element{}}
	d.pages[path] = p
	return p
}

func (p *fakePage) set(scope Scope, css string, els ...Element) *fakePage {
	p.nodes[queryKey(scope, css)] = els
	return p
}

func (d *fakeDriver) log(event string) {
	d.events = append(d.events, event)
}

func (d *fakeDriver) Navigate(ctx context.Context, rawURL string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("navigate")
	if d.navigateErr != nil {
		return 0, d.navigateErr
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	p, ok := d.pages[u.Path]
	if !ok {
		return 404, nil
	}
	d.history = append(d.history, u.Path)
	d.current = p
	return p.status, nil
}

// goTo switches pages without recording a navigate event, like client-side routing.
func (d *fakeDriver) goTo(path string) {
	d.history = append(d.history, path)
	d.current = d.pages[path]
}

func (d *fakeDriver) Back(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) < 2 {
		return ErrNoHistory
	}
	d.history = d.history[:len(d.history)-1]
	d.current = d.pages[d.history[len(d.history)-1]]
	return nil
}

func (d *fakeDriver) Location(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return "about:blank", nil
	}
	return "http://app.test" + d.history[len(d.history)-1], nil
}

func (d *fakeDriver) Find(ctx context.Context, q Query) ([]Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("find")
	if d.current == nil {
		return nil, nil
	}
	var out []Element
	for _, el := range d.current.nodes[queryKey(q.Scope, q.CSS)] {
		if el.Visible || q.IncludeHidden {
			out = append(out, el)
		}
	}
	return out, nil
}

func (d *fakeDriver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return "", nil
	}
	return d.current.html, nil
}

func (d *fakeDriver) Evaluate(ctx context.Context, expr string, res any) error {
	return ErrScriptUnsupported
}

func (d *fakeDriver) Click(ctx context.Context, el Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("click")
	d.clicks = append(d.clicks, el)
	if d.onClick != nil {
		d.onClick(d, el)
	}
	return nil
}

func (d *fakeDriver) SetValue(ctx context.Context, el Element, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("set value")
	if el.Tag != "input" && el.Tag != "textarea" {
		return errors.New("element is not a text field")
	}
	d.values[el.Ref] = value
	if d.onSetValue != nil {
		d.onSetValue(d, el, value)
	}
	return nil
}

func (d *fakeDriver) PageErrors() []PageError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PageError(nil), d.pageErrors...)
}

func (d *fakeDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Pending pops the scripted pending counts; the last one repeats.
func (d *fakeDriver) Pending(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("probe")
	d.probes++
	if len(d.pending) == 0 {
		return 0, nil
	}
	n := d.pending[0]
	if len(d.pending) > 1 {
		d.pending = d.pending[1:]
	}
	return n, nil
}

func (d *fakeDriver) eventLog() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.events, ",")
}

func visible(ref, tag, text string) Element {
	return Element{Ref: ref, Tag: tag, Text: text, Visible: true}
}
