// internal/browser/static/driver.go
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
)

const maxRedirects = 10

// Driver is a harness.Driver that fetches documents over plain HTTP and never
// runs their scripts. It reproduces what a client with JavaScript disabled
// sees: the server-rendered markup only.
type Driver struct {
	client    *http.Client
	logger    *zap.Logger
	userAgent string

	mu      sync.Mutex
	history []*document
	closed  bool
}

var (
	_ harness.Driver       = (*Driver)(nil)
	_ harness.PendingProbe = (*Driver)(nil)
)

// New creates a driver with its own cookie jar. Cookies persist across
// navigations for the driver's lifetime, like a browser profile.
func New(cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := &http.Client{
		Jar:       jar,
		Transport: newDecodingTransport(),
		// Redirects are followed by hand so every hop goes through the same
		// header and method rules as a form submission.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Driver{
		client:    client,
		logger:    logger.Named("static"),
		userAgent: cfg.UserAgent,
	}, nil
}

func (d *Driver) current() (*document, error) {
	if d.closed {
		return nil, harness.ErrSessionClosed
	}
	if len(d.history) == 0 {
		return nil, nil
	}
	return d.history[len(d.history)-1], nil
}

// Navigate implements harness.Driver.
func (d *Driver) Navigate(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request for '%s': %w", rawURL, err)
	}
	return d.load(ctx, req)
}

// load executes req, follows redirects and pushes the resulting document.
func (d *Driver) load(ctx context.Context, req *http.Request) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, harness.ErrSessionClosed
	}
	referer := ""
	if doc, _ := d.current(); doc != nil {
		u := *doc.url
		u.Fragment, u.RawFragment = "", ""
		referer = u.String()
	}
	d.mu.Unlock()

	current := req
	for i := 0; i < maxRedirects; i++ {
		d.prepareHeaders(current, referer)
		d.logger.Debug("Executing request.", zap.String("method", current.Method), zap.String("url", current.URL.String()))

		resp, err := d.client.Do(current)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, fmt.Errorf("request failed: %w", err)
		}

		if isRedirect(resp.StatusCode) {
			next, err := d.redirect(ctx, resp, current)
			resp.Body.Close()
			if err != nil {
				return resp.StatusCode, fmt.Errorf("failed to follow redirect: %w", err)
			}
			referer = current.URL.String()
			current = next
			continue
		}

		doc, err := parseResponse(resp)
		resp.Body.Close()
		if err != nil {
			return resp.StatusCode, err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return resp.StatusCode, harness.ErrSessionClosed
		}
		d.history = append(d.history, doc)
		d.logger.Debug("Document loaded.", zap.String("url", doc.url.String()), zap.Int("status", doc.status))
		return doc.status, nil
	}
	return 0, fmt.Errorf("maximum number of redirects (%d) exceeded", maxRedirects)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// redirect builds the follow-up request for a 3xx response.
func (d *Driver) redirect(ctx context.Context, resp *http.Response, orig *http.Request) (*http.Request, error) {
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, errors.New("redirect response missing Location header")
	}
	next, err := orig.URL.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect Location '%s': %w", location, err)
	}

	method := orig.Method
	var body io.ReadCloser
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		if method != http.MethodHead {
			method = http.MethodGet
		}
	default:
		if orig.GetBody != nil {
			if body, err = orig.GetBody(); err != nil {
				return nil, fmt.Errorf("failed to replay request body: %w", err)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, next.String(), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", orig.Header.Get("Content-Type"))
	}
	return req, nil
}

func (d *Driver) prepareHeaders(req *http.Request, referer string) {
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if referer != "" && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", referer)
	}
}

// parseResponse turns the final response into a document. Non-HTML bodies are
// shown as preformatted text, the way a browser displays them.
func parseResponse(resp *http.Response) (*document, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var (
		root *html.Node
		err  error
	)
	if mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		root, err = parseHTML(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML response from '%s': %w", resp.Request.URL, err)
		}
	} else {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response from '%s': %w", resp.Request.URL, err)
		}
		root = preformatted(string(body))
	}
	return newDocument(resp.Request.URL, resp.StatusCode, root), nil
}

// Back implements harness.Driver. The previous document is restored as it was
// left, without a new request.
func (d *Driver) Back(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return harness.ErrSessionClosed
	}
	if len(d.history) < 2 {
		return harness.ErrNoHistory
	}
	d.history = d.history[:len(d.history)-1]
	return nil
}

// Location implements harness.Driver.
func (d *Driver) Location(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.current()
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "about:blank", nil
	}
	return doc.url.String(), nil
}

// Find implements harness.Driver.
func (d *Driver) Find(ctx context.Context, q harness.Query) ([]harness.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.current()
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.find(q)
}

// HTML implements harness.Driver.
func (d *Driver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.current()
	if err != nil || doc == nil {
		return "", err
	}
	var b strings.Builder
	if err := html.Render(&b, doc.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return b.String(), nil
}

// Evaluate implements harness.Driver. Scripts never run here.
func (d *Driver) Evaluate(ctx context.Context, expr string, res any) error {
	return harness.ErrScriptUnsupported
}

// Pending implements harness.PendingProbe. A document without scripts has
// nothing in flight once it is loaded.
func (d *Driver) Pending(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, harness.ErrSessionClosed
	}
	return 0, nil
}

// Click implements harness.Driver. Links are followed and submit buttons
// submit their form; checkboxes and radios toggle. Anything else would need a
// script and is a no-op.
func (d *Driver) Click(ctx context.Context, el harness.Element) error {
	d.mu.Lock()
	doc, err := d.current()
	if err != nil {
		d.mu.Unlock()
		return err
	}
	node, err := doc.resolve(el.Ref)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	action, err := doc.clickAction(ctx, node)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if action == nil {
		d.logger.Debug("Click has no effect without scripts.", zap.String("tag", el.Tag))
		return nil
	}
	_, err = d.load(ctx, action)
	return err
}

// SetValue implements harness.Driver by rewriting the field in the document.
func (d *Driver) SetValue(ctx context.Context, el harness.Element, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.current()
	if err != nil {
		return err
	}
	node, err := doc.resolve(el.Ref)
	if err != nil {
		return err
	}
	return setFieldValue(node, value)
}

// PageErrors implements harness.Driver. Without scripts there are none.
func (d *Driver) PageErrors() []harness.PageError {
	return nil
}

// Close implements harness.Driver.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.history = nil
	d.client.CloseIdleConnections()
	return nil
}

// resolveURL resolves ref against the document URL.
func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(u), nil
}
