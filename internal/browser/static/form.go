// internal/browser/static/form.go
package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// clickAction returns the request a click on n triggers, or nil when the click
// only changes local state (or would need a script).
func (d *document) clickAction(ctx context.Context, n *html.Node) (*http.Request, error) {
	kind, _ := attr(n, "type")
	kind = strings.ToLower(kind)

	switch n.DataAtom {
	case atom.A:
		href, ok := attr(n, "href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil, nil
		}
		target, err := resolveURL(d.url, href)
		if err != nil {
			return nil, fmt.Errorf("invalid link target %q: %w", href, err)
		}
		if sameDocument(d.url, target) {
			d.url = target
			return nil, nil
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)

	case atom.Button:
		if kind == "" || kind == "submit" {
			if form := parentForm(n); form != nil {
				return d.submit(ctx, form, n)
			}
		}
	case atom.Input:
		switch kind {
		case "submit", "image":
			if form := parentForm(n); form != nil {
				return d.submit(ctx, form, n)
			}
		case "checkbox":
			if _, ok := attr(n, "checked"); ok {
				removeAttr(n, "checked")
			} else {
				setAttr(n, "checked", "checked")
			}
		case "radio":
			selectRadio(n)
		}
	}
	return nil, nil
}

// sameDocument reports whether target only changes the fragment of current.
func sameDocument(current, target *url.URL) bool {
	if target.Fragment == "" {
		return false
	}
	a, b := *current, *target
	a.Fragment, b.Fragment = "", ""
	a.RawFragment, b.RawFragment = "", ""
	return a.String() == b.String()
}

func parentForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return p
		}
	}
	return nil
}

func selectRadio(n *html.Node) {
	name, _ := attr(n, "name")
	if form := parentForm(n); form != nil && name != "" {
		goquery.NewDocumentFromNode(form).Find("input[type=radio]").Each(func(_ int, s *goquery.Selection) {
			if other, _ := s.Attr("name"); other == name {
				removeAttr(s.Nodes[0], "checked")
			}
		})
	}
	setAttr(n, "checked", "checked")
}

// submit serializes form as application/x-www-form-urlencoded, including the
// submitter's own name and value.
func (d *document) submit(ctx context.Context, form, submitter *html.Node) (*http.Request, error) {
	action, _ := attr(form, "action")
	if v, ok := attr(submitter, "formaction"); ok {
		action = v
	}
	method, _ := attr(form, "method")
	if v, ok := attr(submitter, "formmethod"); ok {
		method = v
	}
	method = strings.ToUpper(method)
	if method != http.MethodPost {
		method = http.MethodGet
	}

	target, err := resolveURL(d.url, action)
	if err != nil {
		return nil, fmt.Errorf("invalid form action %q: %w", action, err)
	}
	target.Fragment, target.RawFragment = "", ""

	values := formValues(form)
	if name, ok := attr(submitter, "name"); ok && name != "" {
		values.Add(name, fieldValue(submitter))
	}

	if method == http.MethodPost {
		req, err := http.NewRequestWithContext(ctx, method, target.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	// A GET submission replaces the action's query string.
	target.RawQuery = values.Encode()
	return http.NewRequestWithContext(ctx, method, target.String(), nil)
}

func formValues(form *html.Node) url.Values {
	values := url.Values{}
	goquery.NewDocumentFromNode(form).Find("input, textarea, select").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		name, _ := attr(n, "name")
		if name == "" {
			return
		}
		if _, disabled := attr(n, "disabled"); disabled {
			return
		}
		switch n.DataAtom {
		case atom.Input:
			kind, _ := attr(n, "type")
			switch strings.ToLower(kind) {
			case "checkbox", "radio":
				if _, ok := attr(n, "checked"); ok {
					v, ok := attr(n, "value")
					if !ok {
						v = "on"
					}
					values.Add(name, v)
				}
			case "submit", "button", "image", "reset", "file":
			default:
				values.Add(name, fieldValue(n))
			}
		case atom.Textarea:
			values.Add(name, fieldValue(n))
		case atom.Select:
			values.Add(name, fieldValue(n))
		}
	})
	return values
}

// setFieldValue replaces the value of a text field in place.
func setFieldValue(n *html.Node, value string) error {
	switch n.DataAtom {
	case atom.Input:
		kind, _ := attr(n, "type")
		switch strings.ToLower(kind) {
		case "checkbox", "radio", "submit", "button", "image", "reset", "file", "hidden":
			return fmt.Errorf("cannot type into <input type=%q>", kind)
		}
	case atom.Textarea:
	default:
		return errors.New("element is not a text field")
	}
	if _, ok := attr(n, "disabled"); ok {
		return errors.New("field is disabled")
	}
	if _, ok := attr(n, "readonly"); ok {
		return errors.New("field is read-only")
	}

	if n.DataAtom == atom.Textarea {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		return nil
	}
	setAttr(n, "value", value)
	return nil
}
