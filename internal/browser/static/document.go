// internal/browser/static/document.go
package static

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// document is one loaded page. Element refs index into its node order and are
// only meaningful for this document.
type document struct {
	url    *url.URL
	status int
	root   *html.Node
	doc    *goquery.Document
	order  map[*html.Node]int
	nodes  []*html.Node
}

func newDocument(u *url.URL, status int, root *html.Node) *document {
	d := &document{
		url:    u,
		status: status,
		root:   root,
		doc:    goquery.NewDocumentFromNode(root),
		order:  make(map[*html.Node]int),
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.order[n] = len(d.nodes)
			d.nodes = append(d.nodes, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return d
}

// preformatted wraps a non-HTML body the way a browser renders plain text.
func preformatted(text string) *html.Node {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := element(atom.Html)
	head := element(atom.Head)
	body := element(atom.Body)
	pre := element(atom.Pre)
	pre.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	body.AppendChild(pre)
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	root.AppendChild(htmlEl)
	return root
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func (d *document) ref(n *html.Node) string {
	return "n" + strconv.Itoa(d.order[n])
}

func (d *document) resolve(ref string) (*html.Node, error) {
	i, err := strconv.Atoi(strings.TrimPrefix(ref, "n"))
	if err != nil || !strings.HasPrefix(ref, "n") || i < 0 || i >= len(d.nodes) {
		return nil, fmt.Errorf("stale element reference %q", ref)
	}
	return d.nodes[i], nil
}

// find resolves q: each scope level is matched below the previous one, then
// CSS below the last level.
func (d *document) find(q harness.Query) (els []harness.Element, err error) {
	// goquery compiles selectors with MustCompile and panics on malformed ones.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid selector in %s | %q: %v", q.Scope, q.CSS, r)
		}
	}()

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

	found := sel.Nodes
	sort.Slice(found, func(i, j int) bool { return d.order[found[i]] < d.order[found[j]] })

	for _, n := range found {
		vis := visible(n)
		if !vis && !q.IncludeHidden {
			continue
		}
		els = append(els, d.snapshot(n, vis))
	}
	return els, nil
}

var snapshotAttrs = []string{"id", "title", "alt", "aria-label", "type", "name", "href"}

func (d *document) snapshot(n *html.Node, vis bool) harness.Element {
	attrs := make(map[string]string)
	for _, a := range n.Attr {
		for _, name := range snapshotAttrs {
			if a.Key == name {
				attrs[name] = a.Val
			}
		}
	}
	text := textContent(n)
	if vis {
		text = renderedText(n)
	}
	return harness.Element{
		Ref:     d.ref(n),
		Tag:     n.Data,
		Text:    text,
		Value:   fieldValue(n),
		Visible: vis,
		Attrs:   attrs,
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// parseHTML parses markup the way a browser with scripting disabled does, so
// <noscript> content becomes elements that render.
func parseHTML(r io.Reader) (*html.Node, error) {
	return html.ParseWithOptions(r, html.ParseOptionEnableScripting(false))
}

// hiddenSelf reports whether n itself is never rendered.
func hiddenSelf(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Title, atom.Meta, atom.Link:
		return true
	case atom.Input:
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if style, ok := attr(n, "style"); ok {
		compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
		if strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden") {
			return true
		}
	}
	return false
}

// visible approximates rendering from markup alone: inline styles, the hidden
// attribute and elements that never render.
func visible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && hiddenSelf(p) {
			return false
		}
	}
	return true
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// renderedText is the text a reader would see: hidden subtrees are skipped and
// block boundaries become line breaks.
func renderedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if hiddenSelf(n) {
				return
			}
		}
		block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// fieldValue mirrors the DOM value property for form controls.
func fieldValue(n *html.Node) string {
	switch n.DataAtom {
	case atom.Input, atom.Button, atom.Option:
		if v, ok := attr(n, "value"); ok {
			return v
		}
		if n.DataAtom == atom.Option {
			return strings.TrimSpace(textContent(n))
		}
		return ""
	case atom.Textarea:
		return textContent(n)
	case atom.Select:
		var first *html.Node
		var chosen string
		goquery.NewDocumentFromNode(n).Find("option").EachWithBreak(func(i int, s *goquery.Selection) bool {
			opt := s.Nodes[0]
			if first == nil {
				first = opt
			}
			if _, ok := attr(opt, "selected"); ok {
				chosen = fieldValue(opt)
				first = nil
				return false
			}
			return true
		})
		if first != nil {
			return fieldValue(first)
		}
		return chosen
	}
	return ""
}
