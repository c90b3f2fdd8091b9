// Package xml wraps github.com/antchfx/xmlquery for the XML-based formats:
// well-formedness checks that report positions, XPath queries with
// compiled-expression caching, and pretty printing.
//
// Entity expansion is disabled while checking, and external entities are
// never fetched, so hostile DTDs cannot expand or read files.
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html/charset"

	"github.com/FocuswithJustin/Rescribe/core/encoding"
)

var bom = []byte("\xef\xbb\xbf")

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is an element, text or other node of a Document.
type Node struct {
	node *xmlquery.Node
}

// SyntaxError reports malformed XML with the position where the decoder
// gave up.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Check verifies that data is well-formed. It returns a *SyntaxError
// describing the first problem.
func Check(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	decoder.Entity = map[string]string{}
	decoder.CharsetReader = charset.NewReaderLabel

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			line, col := decoder.InputPos()
			msg := err.Error()
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				msg = se.Msg
			}
			return &SyntaxError{Line: line, Column: col, Message: msg}
		}
	}
}

// Parse checks and parses data.
func Parse(data []byte) (*Document, error) {
	if err := Check(data); err != nil {
		return nil, err
	}
	root, err := xmlquery.Parse(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

var exprCache sync.Map // string -> *xpath.Expr

func compile(expr string) (*xpath.Expr, error) {
	if e, ok := exprCache.Load(expr); ok {
		return e.(*xpath.Expr), nil
	}
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	exprCache.Store(expr, e)
	return e, nil
}

func find(top *xmlquery.Node, expr string) ([]*Node, error) {
	e, err := compile(expr)
	if err != nil {
		return nil, err
	}
	found := xmlquery.QuerySelectorAll(top, e)
	out := make([]*Node, len(found))
	for i, n := range found {
		out[i] = &Node{node: n}
	}
	return out, nil
}

func findOne(top *xmlquery.Node, expr string) (*Node, error) {
	e, err := compile(expr)
	if err != nil {
		return nil, err
	}
	if n := xmlquery.QuerySelector(top, e); n != nil {
		return &Node{node: n}, nil
	}
	return nil, nil
}

// Root returns the document element, or nil when there is none.
func (d *Document) Root() *Node {
	if d == nil || d.root == nil {
		return nil
	}
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return &Node{node: c}
		}
	}
	return nil
}

// Find evaluates an XPath expression against the document.
func (d *Document) Find(expr string) ([]*Node, error) {
	return find(d.root, expr)
}

// FindOne returns the first match of expr, or nil.
func (d *Document) FindOne(expr string) (*Node, error) {
	return findOne(d.root, expr)
}

// Find evaluates an XPath expression relative to n.
func (n *Node) Find(expr string) ([]*Node, error) {
	return find(n.node, expr)
}

// FindOne returns the first match of expr relative to n, or nil.
func (n *Node) FindOne(expr string) (*Node, error) {
	return findOne(n.node, expr)
}

// Name returns the local element name.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the concatenated text of n and its descendants.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Attr returns the value of the attribute with the given local name.
func (n *Node) Attr(name string) string {
	v, _ := n.AttrOK(name)
	return v
}

// AttrOK is like Attr but reports whether the attribute is present.
func (n *Node) AttrOK(name string) (string, bool) {
	if n == nil || n.node == nil {
		return "", false
	}
	for _, a := range n.node.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns the attributes of n in document order as local-name,
// value pairs.
func (n *Node) Attrs() [][2]string {
	if n == nil || n.node == nil {
		return nil
	}
	out := make([][2]string, 0, len(n.node.Attr))
	for _, a := range n.node.Attr {
		out = append(out, [2]string{a.Name.Local, a.Value})
	}
	return out
}

// Children returns the child elements named name, or all child elements
// when name is empty.
func (n *Node) Children(name string) []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var out []*Node
	for c := n.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && (name == "" || c.Data == name) {
			out = append(out, &Node{node: c})
		}
	}
	return out
}

// Format re-indents data, one element per line. Indent defaults to two
// spaces.
func Format(data []byte, indent string) ([]byte, error) {
	if indent == "" {
		indent = "  "
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	formatNode(&buf, doc.root, 0, indent)
	return buf.Bytes(), nil
}

func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			formatNode(w, c, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		for _, a := range n.Attr {
			w.WriteString(" " + a.Name.Local + `="` + encoding.EscapeXMLAttr(a.Value) + `"`)
		}
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		w.WriteString(strings.Repeat(indent, depth) + "<" + qualified(n))
		for _, a := range n.Attr {
			name := a.Name.Local
			// Resolved namespace URIs cannot be written back as prefixes.
			if a.Name.Space != "" && !strings.ContainsAny(a.Name.Space, ":/") {
				name = a.Name.Space + ":" + name
			}
			w.WriteString(" " + name + `="` + encoding.EscapeXMLAttr(a.Value) + `"`)
		}
		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}

		nested := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nested = nested || c.Type == xmlquery.ElementNode
		}
		w.WriteString(">")
		if nested {
			w.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xmlquery.ElementNode, xmlquery.CommentNode:
				formatNode(w, c, depth+1, indent)
			case xmlquery.TextNode:
				if strings.TrimSpace(c.Data) == "" {
					continue
				}
				if nested {
					w.WriteString(strings.Repeat(indent, depth+1) + encoding.EscapeXMLText(strings.TrimSpace(c.Data)) + "\n")
				} else {
					w.WriteString(encoding.EscapeXMLText(c.Data))
				}
			case xmlquery.CharDataNode:
				w.WriteString("<![CDATA[" + c.Data + "]]>")
			}
		}
		if nested {
			w.WriteString(strings.Repeat(indent, depth))
		}
		w.WriteString("</" + qualified(n) + ">\n")

	case xmlquery.CommentNode:
		w.WriteString(strings.Repeat(indent, depth) + "<!--" + n.Data + "-->\n")
	}
}

func qualified(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}
