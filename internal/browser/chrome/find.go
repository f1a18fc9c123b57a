// internal/browser/chrome/find.go
package chrome

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// findScript resolves a harness.Query in the page. Each result carries a CSS
// path of nth-child steps as its Ref, valid until the DOM changes shape.
const findScript = `(function(q) {
	function isVisible(el) {
		if (!el.isConnected) { return false; }
		var style = window.getComputedStyle(el);
		if (style.display === "none" || style.visibility === "hidden") { return false; }
		return el.getClientRects().length > 0;
	}
	function pathOf(el) {
		var steps = [];
		for (; el && el !== document.documentElement; el = el.parentElement) {
			var i = 1;
			for (var s = el.previousElementSibling; s; s = s.previousElementSibling) { i++; }
			steps.unshift(el.tagName.toLowerCase() + ":nth-child(" + i + ")");
		}
		steps.unshift("html");
		return steps.join(" > ");
	}
	function within(roots, css) {
		var out = [];
		roots.forEach(function(root) {
			root.querySelectorAll(css).forEach(function(el) {
				if (out.indexOf(el) < 0) { out.push(el); }
			});
		});
		return out;
	}

	var nodes = [document];
	for (var i = 0; i < q.scope.length; i++) {
		nodes = within(nodes, q.scope[i]);
	}
	var found;
	if (q.css) {
		found = within(nodes, q.css);
	} else if (q.scope.length) {
		found = nodes;
	} else {
		found = document.body ? [document.body] : [];
	}
	found.sort(function(a, b) {
		if (a === b) { return 0; }
		return (a.compareDocumentPosition(b) & Node.DOCUMENT_POSITION_FOLLOWING) ? -1 : 1;
	});

	var names = ["id", "title", "alt", "aria-label", "type", "name", "href"];
	var out = [];
	found.forEach(function(el) {
		var visible = isVisible(el);
		if (!visible && !q.includeHidden) { return; }
		var attrs = {};
		names.forEach(function(n) {
			var v = el.getAttribute(n);
			if (v !== null) { attrs[n] = v; }
		});
		out.push({
			ref: pathOf(el),
			tag: el.tagName.toLowerCase(),
			text: visible ? el.innerText : el.textContent,
			value: typeof el.value === "string" ? el.value : "",
			visible: visible,
			attrs: attrs
		});
	});
	return out;
})(%s)`

type findQuery struct {
	Scope         []string `json:"scope"`
	CSS           string   `json:"css"`
	IncludeHidden bool     `json:"includeHidden"`
}

func findExpression(q harness.Query) (string, error) {
	arg, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(findQuery{
		Scope:         append([]string{}, q.Scope...),
		CSS:           q.CSS,
		IncludeHidden: q.IncludeHidden,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	return fmt.Sprintf(findScript, arg), nil
}

// clearScript empties a text field through the native value setter, so that
// framework-controlled inputs observe the change, and fires input and change.
const clearScript = `(function(sel) {
	var el = document.querySelector(sel);
	if (!el || el.disabled || el.readOnly) { return false; }
	var proto = Object.getPrototypeOf(el);
	var desc = Object.getOwnPropertyDescriptor(proto, "value");
	if (desc && desc.set) { desc.set.call(el, ""); } else { el.value = ""; }
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	el.focus();
	return true;
})(%s)`

// changeScript fires change on a field after typing, as a blur would.
const changeScript = `(function(sel) {
	var el = document.querySelector(sel);
	if (!el) { return false; }
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})(%s)`

func refExpression(script, ref string) (string, error) {
	arg, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(ref)
	if err != nil {
		return "", fmt.Errorf("failed to encode element reference: %w", err)
	}
	return fmt.Sprintf(script, arg), nil
}
