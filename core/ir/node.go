package ir

import (
	"slices"
	"strings"
)

// Span is a byte range in the source input.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Node is an element of the document tree. A node's meaning comes entirely
// from its Kind and Props; no construction-time validation is performed.
//
// The builder methods return updated copies and never alias the receiver's
// property bag or child slice.
type Node struct {
	Kind     Kind
	Props    Properties
	Children []Node
	Span     *Span
}

// NewNode returns a childless node of the given kind.
func NewNode(kind Kind) Node {
	return Node{Kind: kind}
}

// Text returns a text node carrying content.
func Text(content string) Node {
	return NewNode(KindText).Prop(PropContent, String(content))
}

// Prop returns a copy of n with key set to v.
func (n Node) Prop(key string, v Value) Node {
	n.Props = n.Props.Clone()
	n.Props.Set(key, v)
	return n
}

// Child returns a copy of n with c appended to its children.
func (n Node) Child(c Node) Node {
	n.Children = append(slices.Clip(n.Children), c)
	return n
}

// WithChildren returns a copy of n with cs appended to its children.
func (n Node) WithChildren(cs ...Node) Node {
	n.Children = append(slices.Clip(n.Children), cs...)
	return n
}

// WithSpan returns a copy of n carrying the source span.
func (n Node) WithSpan(start, end int) Node {
	n.Span = &Span{Start: start, End: end}
	return n
}

// Is reports whether n has the given kind.
func (n Node) Is(kind Kind) bool {
	return n.Kind == kind
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := Node{Kind: n.Kind, Props: n.Props.Clone()}
	if n.Span != nil {
		s := *n.Span
		out.Span = &s
	}
	if n.Children != nil {
		out.Children = make([]Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Content returns the "content" property as text.
func (n Node) Content() string {
	s, _ := n.Props.GetString(PropContent)
	return s
}

// TextContent concatenates the textual payload of n and its descendants in
// document order: text and code content, plus any "math:source" property.
func TextContent(n Node) string {
	var b strings.Builder
	appendText(&b, n)
	return b.String()
}

// mathSource mirrors math.PropSource; leaf math nodes carry their source text there.
const mathSource = "math:source"

func appendText(b *strings.Builder, n Node) {
	switch n.Kind {
	case KindText, KindCode, KindCodeBlock:
		b.WriteString(n.Content())
		return
	case KindLineBreak, KindSoftBreak:
		b.WriteByte(' ')
		return
	}
	if src, ok := n.Props.GetString(mathSource); ok && len(n.Children) == 0 {
		b.WriteString(src)
		return
	}
	for _, c := range n.Children {
		appendText(b, c)
	}
}
