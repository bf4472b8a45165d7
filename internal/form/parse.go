package form

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseHTML reads a rendered form page. The host comes from the first <html>
// element's data-host attribute. Inputs are collected by id; textual inputs
// carry their value attribute, checkboxes their checked attribute. Any
// element with id "custom-url" becomes the result container, holding its
// current inner markup.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	d := NewDocument()
	rootSeen := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Html && !rootSeen:
				rootSeen = true
				if v, ok := attr(n, HostAttr); ok {
					d.SetRootAttr(HostAttr, v)
				}
			case n.DataAtom == atom.Input:
				if id, ok := attr(n, "id"); ok && id != "" {
					d.SetElement(id, inputElement(n))
				}
			}
			if id, ok := attr(n, "id"); ok && id == IDResult {
				d.AddContainer(IDResult)
				_ = d.SetInnerHTML(IDResult, innerHTML(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return d, nil
}

func inputElement(n *html.Node) Element {
	val, _ := attr(n, "value")
	typ, _ := attr(n, "type")
	_, checked := attr(n, "checked")

	el := Element{Value: val}
	switch strings.ToLower(typ) {
	case "checkbox", "radio":
		el.Checked = checked
	}
	return el
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return strings.TrimSpace(buf.String())
}
