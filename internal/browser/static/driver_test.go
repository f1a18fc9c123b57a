// internal/browser/static/driver_test.go
package static

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>Custom page title</title><script>window.boot = true;</script></head>
<body>
  <h1>Hello, World!</h1>
  <p id="lead">Rendered on the <b>server</b>.</p>
  <div style="display: none"><span>Invisible</span></div>
  <p hidden>Also invisible</p>
  <a href="/second">Second page</a>
  <a href="#top">Top</a>
  <a href="javascript:void(0)">Nothing</a>
  <form action="/search" method="get">
    <input type="text" name="q" value="initial">
    <input type="hidden" name="token" value="abc">
    <input type="checkbox" name="exact" value="yes">
    <select name="sort"><option value="asc">Ascending</option><option value="desc" selected>Descending</option></select>
    <button type="submit" name="go" value="1">Search</button>
  </form>
  <form action="/posts" method="post">
    <textarea name="body">old</textarea>
    <input type="submit" value="Post">
  </form>
</body>
</html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	})
	mux.HandleFunc("/second", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h2>Second Page</h2><p id="ref">%s</p></body></html>`, r.Header.Get("Referer"))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><pre id="query">%s</pre></body></html>`, html.EscapeString(r.URL.RawQuery))
	})
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		require.NoError(t, r.ParseForm())
		http.SetCookie(w, &http.Cookie{Name: "flash", Value: "created-" + r.PostForm.Get("body"), Path: "/"})
		http.Redirect(w, r, "/flash", http.StatusSeeOther)
	})
	mux.HandleFunc("/flash", func(w http.ResponseWriter, r *http.Request) {
		msg := ""
		if c, err := r.Cookie("flash"); err == nil {
			msg = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "flash", Value: "", Path: "/", MaxAge: -1})
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><div class="flash">%s</div><p>method=%s</p></body></html>`, msg, r.Method)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<html><body>Internal Server Error</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := New(config.NewDefaultConfig().Browser(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func findOne(t *testing.T, d *Driver, q harness.Query) harness.Element {
	t.Helper()
	els, err := d.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, els, 1, "query %s | %q", q.Scope, q.CSS)
	return els[0]
}

func TestDriver_NavigateAndFind(t *testing.T) {
	server := newServer(t)
	d := newDriver(t)
	ctx := context.Background()

	loc, err := d.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", loc)

	status, err := d.Navigate(ctx, server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	t.Run("body text skips hidden subtrees", func(t *testing.T) {
		body := findOne(t, d, harness.Query{})
		assert.Equal(t, "body", body.Tag)
		assert.Contains(t, body.Text, "Hello, World!")
		assert.Contains(t, harness.NormalizeSpace(body.Text), "Rendered on the server.")
		assert.NotContains(t, body.Text, "Invisible")
		assert.NotContains(t, body.Text, "Also invisible")
		assert.NotContains(t, body.Text, "window.boot")
	})

	t.Run("hidden nodes need IncludeHidden", func(t *testing.T) {
		els, err := d.Find(ctx, harness.Query{CSS: "title"})
		require.NoError(t, err)
		assert.Empty(t, els)

		title := findOne(t, d, harness.Query{CSS: "title", IncludeHidden: true})
		assert.False(t, title.Visible)
		assert.Equal(t, "Custom page title", title.Text)

		span := findOne(t, d, harness.Query{Scope: harness.Within("div"), CSS: "span", IncludeHidden: true})
		assert.False(t, span.Visible)
	})

	t.Run("scope chain and attributes", func(t *testing.T) {
		q := findOne(t, d, harness.Query{Scope: harness.Within("form[action='/search']"), CSS: "input[name=q]"})
		assert.Equal(t, "input", q.Tag)
		assert.Equal(t, "initial", q.Value)
		assert.Equal(t, "text", q.Attr("type"))

		sel := findOne(t, d, harness.Query{CSS: "select"})
		assert.Equal(t, "desc", sel.Value)
	})

	t.Run("results are in document order", func(t *testing.T) {
		els, err := d.Find(ctx, harness.Query{Scope: harness.Within("body"), CSS: "a, h1"})
		require.NoError(t, err)
		require.Len(t, els, 4)
		assert.Equal(t, "h1", els[0].Tag)
		assert.Equal(t, "Second page", els[1].Text)
	})

	t.Run("malformed selectors are errors", func(t *testing.T) {
		_, err := d.Find(ctx, harness.Query{CSS: "div[["})
		assert.Error(t, err)
	})

	t.Run("html is the parsed document", func(t *testing.T) {
		doc, err := d.HTML(ctx)
		require.NoError(t, err)
		assert.Contains(t, doc, `<p id="lead">`)
	})
}

func TestDriver_ClickLinkAndBack(t *testing.T) {
	server := newServer(t)
	d := newDriver(t)
	ctx := context.Background()

	_, err := d.Navigate(ctx, server.URL+"/")
	require.NoError(t, err)
	assert.ErrorIs(t, d.Back(ctx), harness.ErrNoHistory)

	links, err := d.Find(ctx, harness.Query{CSS: "a[href]"})
	require.NoError(t, err)
	require.Len(t, links, 3)

	t.Run("fragment and script links stay on the page", func(t *testing.T) {
		require.NoError(t, d.Click(ctx, links[2]))
		require.NoError(t, d.Click(ctx, links[1]))
		loc, err := d.Location(ctx)
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/#top", loc)
	})

	require.NoError(t, d.Click(ctx, links[0]))
	loc, err := d.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/second", loc)
	assert.Equal(t, server.URL+"/", findOne(t, d, harness.Query{CSS: "#ref"}).Text)

	t.Run("refs do not survive navigation", func(t *testing.T) {
		assert.Error(t, d.Click(ctx, harness.Element{Ref: "n9999", Tag: "a"}))
		assert.Error(t, d.Click(ctx, harness.Element{Ref: "bogus", Tag: "a"}))
	})

	require.NoError(t, d.Back(ctx))
	assert.Equal(t, "Hello, World!", findOne(t, d, harness.Query{CSS: "h1"}).Text)
}

func TestDriver_FormSubmission(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	t.Run("get form carries typed values and the submitter", func(t *testing.T) {
		d := newDriver(t)
		_, err := d.Navigate(ctx, server.URL+"/")
		require.NoError(t, err)

		field := findOne(t, d, harness.Query{CSS: "input[name=q]"})
		require.NoError(t, d.SetValue(ctx, field, "go testing"))
		box := findOne(t, d, harness.Query{CSS: "input[type=checkbox]"})
		require.NoError(t, d.Click(ctx, box))

		button := findOne(t, d, harness.Query{CSS: "button"})
		require.NoError(t, d.Click(ctx, button))

		query := findOne(t, d, harness.Query{CSS: "#query"}).Text
		assert.Equal(t, "exact=yes&go=1&q=go+testing&sort=desc&token=abc", query)
	})

	t.Run("post redirect get keeps the flash cookie for one page", func(t *testing.T) {
		d := newDriver(t)
		_, err := d.Navigate(ctx, server.URL+"/")
		require.NoError(t, err)

		area := findOne(t, d, harness.Query{CSS: "textarea"})
		assert.Equal(t, "old", area.Value)
		require.NoError(t, d.SetValue(ctx, area, "hello"))

		submit := findOne(t, d, harness.Query{CSS: "input[type=submit]"})
		require.NoError(t, d.Click(ctx, submit))

		loc, err := d.Location(ctx)
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/flash", loc)
		assert.Equal(t, "created-hello", findOne(t, d, harness.Query{CSS: ".flash"}).Text)
		assert.Contains(t, findOne(t, d, harness.Query{}).Text, "method=GET")

		_, err = d.Navigate(ctx, server.URL+"/flash")
		require.NoError(t, err)
		assert.Empty(t, findOne(t, d, harness.Query{CSS: ".flash", IncludeHidden: true}).Text)
	})
}

func TestDriver_SetValueRejectsNonFields(t *testing.T) {
	server := newServer(t)
	d := newDriver(t)
	ctx := context.Background()
	_, err := d.Navigate(ctx, server.URL+"/")
	require.NoError(t, err)

	assert.Error(t, d.SetValue(ctx, findOne(t, d, harness.Query{CSS: "h1"}), "x"))
	assert.Error(t, d.SetValue(ctx, findOne(t, d, harness.Query{CSS: "input[type=checkbox]"}), "x"))
}

func TestDriver_ResponseKinds(t *testing.T) {
	server := newServer(t)
	d := newDriver(t)
	ctx := context.Background()

	status, err := d.Navigate(ctx, server.URL+"/error")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)

	status, err = d.Navigate(ctx, server.URL+"/data.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"ok":true}`, findOne(t, d, harness.Query{CSS: "pre"}).Text)

	_, err = d.Navigate(ctx, server.URL+"/loop")
	assert.ErrorContains(t, err, "maximum number of redirects")
}

func TestDriver_NoScripts(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	var out any
	assert.ErrorIs(t, d.Evaluate(ctx, "1 + 1", &out), harness.ErrScriptUnsupported)
	n, err := d.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.PageErrors())
}

func TestDriver_Close(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))

	_, err := d.Navigate(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, harness.ErrSessionClosed)
	_, err = d.Location(ctx)
	assert.ErrorIs(t, err, harness.ErrSessionClosed)
	_, err = d.Pending(ctx)
	assert.ErrorIs(t, err, harness.ErrSessionClosed)
}

func TestDriver_WithSession(t *testing.T) {
	server := newServer(t)
	d := newDriver(t)
	ctx := context.Background()

	opts := harness.DefaultOptions()
	opts.BaseURL = server.URL
	s, err := harness.NewSession(d, opts, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Visit(ctx, "/"))
	require.NoError(t, s.ExpectText(ctx, harness.Document, "Hello, World!", harness.ModeContains))
	require.NoError(t, s.ExpectCSS(ctx, "title", harness.WithText("Custom page title"), harness.IncludeHidden()))
	require.NoError(t, s.ExpectNoText(ctx, harness.Document, "Invisible", harness.ModeContains))
	require.NoError(t, s.ExpectHTMLContains(ctx, `<p id="lead">`))

	require.NoError(t, s.ClickLink(ctx, "Second"))
	require.NoError(t, s.ExpectPath(ctx, "/second"))
	require.NoError(t, s.GoBack(ctx))

	require.NoError(t, s.FillInput(ctx, harness.Within("form[method=post]"), "via-session"))
	require.NoError(t, s.ClickButton(ctx, "Post"))
	require.NoError(t, s.ExpectText(ctx, harness.Within(".flash"), "created-via-session", harness.ModeExact))
	require.NoError(t, s.Finish(ctx))
}
