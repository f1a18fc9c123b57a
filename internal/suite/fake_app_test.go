// internal/suite/fake_app_test.go
package suite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// appPage is a canned document plus the client-side behaviour it would have.
type appPage struct {
	markup string
	errors []harness.PageError
	// onInput emulates component handlers reacting to typed text.
	onInput func(doc *goquery.Document, field *html.Node, value string)
}

// fakeApp is an in-memory application shared by every driver it hands out.
type fakeApp struct {
	pages map[string]*appPage

	mu       sync.Mutex
	live     int
	maxLive  int
	launched map[string]int
	closed   atomic.Int32
	failNew  error
}

func newFakeApp() *fakeApp {
	return &fakeApp{pages: map[string]*appPage{}, launched: map[string]int{}}
}

func (a *fakeApp) NewDriver(ctx context.Context, kind string) (harness.Driver, harness.PendingProbe, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNew != nil {
		return nil, nil, a.failNew
	}
	a.launched[kind]++
	a.live++
	a.maxLive = max(a.maxLive, a.live)
	return &appDriver{app: a}, nil, nil
}

func (a *fakeApp) released() {
	a.mu.Lock()
	a.live--
	a.mu.Unlock()
	a.closed.Add(1)
}

func (a *fakeApp) launches(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launched[kind]
}

// appDriver renders fakeApp pages with goquery and applies their handlers.
type appDriver struct {
	app *fakeApp

	mu      sync.Mutex
	history []string
	doc     *goquery.Document
	nodes   []*html.Node
	errs    []harness.PageError
	closed  bool
}

func (d *appDriver) load(path string) (int, error) {
	p, ok := d.app.pages[path]
	if !ok {
		p = &appPage{markup: "<html><body><h1>Not Found</h1></body></html>"}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.markup))
	if err != nil {
		return 0, err
	}
	d.doc = doc
	d.nodes = nil
	doc.Find("*").Each(func(_ int, s *goquery.Selection) { d.nodes = append(d.nodes, s.Nodes[0]) })
	d.history = append(d.history, path)
	d.errs = append(d.errs, p.errors...)
	if !ok {
		return 404, nil
	}
	return 200, nil
}

func (d *appDriver) page() *appPage {
	if len(d.history) == 0 {
		return nil
	}
	return d.app.pages[d.history[len(d.history)-1]]
}

func (d *appDriver) Navigate(ctx context.Context, rawURL string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, harness.ErrSessionClosed
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	return d.load(u.Path)
}

func (d *appDriver) Back(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) < 2 {
		return harness.ErrNoHistory
	}
	prev := d.history[len(d.history)-2]
	d.history = d.history[:len(d.history)-2]
	_, err := d.load(prev)
	return err
}

func (d *appDriver) Location(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return "about:blank", nil
	}
	return "http://app.test" + d.history[len(d.history)-1], nil
}

func (d *appDriver) Find(ctx context.Context, q harness.Query) ([]harness.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, nil
	}
	sel := d.doc.Selection
	for _, level := range q.Scope {
		sel = sel.Find(level)
	}
	switch {
	case q.CSS != "":
		sel = sel.Find(q.CSS)
	case len(q.Scope) == 0:
		sel = d.doc.Find("body")
	}

	var out []harness.Element
	sel.Each(func(_ int, s *goquery.Selection) {
		visible := s.Closest("head").Length() == 0
		if !visible && !q.IncludeHidden {
			return
		}
		attrs := map[string]string{}
		for _, name := range []string{"id", "href", "type", "name", "title"} {
			if v, ok := s.Attr(name); ok {
				attrs[name] = v
			}
		}
		value, _ := s.Attr("value")
		out = append(out, harness.Element{
			Ref:     strconv.Itoa(d.index(s.Nodes[0])),
			Tag:     goquery.NodeName(s),
			Text:    s.Text(),
			Value:   value,
			Visible: visible,
			Attrs:   attrs,
		})
	})
	return out, nil
}

func (d *appDriver) index(n *html.Node) int {
	for i, m := range d.nodes {
		if m == n {
			return i
		}
	}
	return -1
}

func (d *appDriver) node(ref string) (*html.Node, error) {
	i, err := strconv.Atoi(ref)
	if err != nil || i < 0 || i >= len(d.nodes) {
		return nil, fmt.Errorf("stale ref %q", ref)
	}
	return d.nodes[i], nil
}

func (d *appDriver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return "", nil
	}
	return goquery.OuterHtml(d.doc.Selection)
}

func (d *appDriver) Evaluate(ctx context.Context, expr string, res any) error {
	return harness.ErrScriptUnsupported
}

// Pending implements harness.PendingProbe: the fake app never has work in flight.
func (d *appDriver) Pending(ctx context.Context) (int, error) { return 0, nil }

func (d *appDriver) Click(ctx context.Context, el harness.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(el.Ref)
	if err != nil {
		return err
	}
	sel := goquery.NewDocumentFromNode(n).Selection
	href, ok := sel.Attr("href")
	if !ok {
		return nil
	}
	_, err = d.load(href)
	return err
}

func (d *appDriver) SetValue(ctx context.Context, el harness.Element, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(el.Ref)
	if err != nil {
		return err
	}
	if n.Data != "input" && n.Data != "textarea" {
		return errors.New("element is not a text field")
	}
	goquery.NewDocumentFromNode(n).SetAttr("value", value)
	if p := d.page(); p != nil && p.onInput != nil {
		p.onInput(d.doc, n, value)
	}
	return nil
}

func (d *appDriver) PageErrors() []harness.PageError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]harness.PageError(nil), d.errs...)
}

func (d *appDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.app.released()
	return nil
}

// -- Canned application --

func helloComponent(id, name string) string {
	return fmt.Sprintf(`<div id="%s"><h3>Hello, %s!</h3><input type="text" value="%s"></div>`, id, name, name)
}

// greetAll updates the greeting of every component matching css.
func greetAll(css string) func(doc *goquery.Document, field *html.Node, value string) {
	return func(doc *goquery.Document, _ *html.Node, value string) {
		doc.Find(css).Each(func(_ int, s *goquery.Selection) {
			s.Find("h3").SetText("Hello, " + value + "!")
			s.Find("input").SetAttr("value", value)
		})
	}
}

// greetOwn updates only the component that contains the edited field.
func greetOwn(doc *goquery.Document, field *html.Node, value string) {
	goquery.NewDocumentFromNode(field).Parent().Find("h3").SetText("Hello, " + value + "!")
}

func sharedStorePaths() []string {
	return []string{
		"/client_side_hello_world_shared_store",
		"/server_side_hello_world_shared_store",
		"/client_side_hello_world_shared_store_controller",
		"/server_side_hello_world_shared_store_controller",
		"/client_side_hello_world_shared_store_defer",
		"/server_side_hello_world_shared_store_defer",
	}
}

// dummyApp serves the pages the bundled scenarios exercise.
func dummyApp() *fakeApp {
	app := newFakeApp()

	for _, path := range sharedStorePaths() {
		app.pages[path] = &appPage{
			markup: "<html><body>" +
				helloComponent("ReduxSharedStoreApp-react-component-0", "Mr. Server Side Rendering") +
				helloComponent("ReduxSharedStoreApp-react-component-1", "Mr. Server Side Rendering") +
				"</body></html>",
			onInput: greetAll(`[id^="ReduxSharedStoreApp-react-component-"]`),
		}
	}

	nav := `<nav><a href="/react_router/first_page">Router First Page</a><a href="/react_router/second_page">Router Second Page</a></nav>`
	app.pages["/"] = &appPage{
		markup: `<html><head><title>Index</title></head><body>` +
			`<a href="/react_router">React Router</a>` +
			helloComponent("ReduxApp-react-component-0", "Mr. Server Side Rendering") +
			`<p>Time to visit Maui</p></body></html>`,
		onInput: greetOwn,
	}
	app.pages["/react_router"] = &appPage{
		markup: `<html><body>` + nav + `<p>Woohoo, we can use react-router here!</p></body></html>`,
		errors: []harness.PageError{{Message: "Warning: componentWillMount has been renamed", Source: "console"}},
	}
	app.pages["/react_router/first_page"] = &appPage{
		markup: `<html><body>` + nav + `<h2>React Router First Page</h2></body></html>`,
	}
	app.pages["/react_router/second_page"] = &appPage{
		markup: `<html><body>` + nav + `<h2>React Router Second Page</h2></body></html>`,
	}
	app.pages["/server_side_log_throw"] = &appPage{
		markup: `<html><body>
			<p>This example demonstrates server side logging and error handling.</p>
			<pre>Exception in rendering!

Message: throw in HelloWorldWithLogAndThrow</pre></body></html>`,
		errors: []harness.PageError{
			{Message: "[SERVER] console.error in HelloWorldWithLogAndThrow", Source: "console"},
			{Message: "Uncaught Error: throw in HelloWorldWithLogAndThrow", Source: "exception"},
		},
	}
	app.pages["/client_side_hello_world"] = &appPage{
		markup:  `<html><body>` + helloComponent("HelloWorld-react-component-0", "Stranger") + `</body></html>`,
		onInput: greetOwn,
	}
	return app
}
