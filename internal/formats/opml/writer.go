package opml

import (
	"strings"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/encoding"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/core/xml"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

type entry struct {
	attrs    [][2]string
	children []*entry
}

type emitter struct {
	ws *ir.Warnings
}

// Emit implements plugins.Writer.
//
// Lists become nested outlines. Headings open an outline that holds the
// content up to the next heading of the same or a higher level. Other
// blocks are reduced to their text.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var ws ir.Warnings
	e := &emitter{ws: &ws}

	version := "2.0"
	if src, ok := opts.SourceMetadata(doc, FormatName); ok {
		version = src.StringOr(SourceVersion, version)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<opml version="` + encoding.EscapeXMLAttr(version) + `"><head>`)
	for _, f := range headFields {
		if v, ok := doc.Metadata.GetString(f.key); ok {
			b.WriteString("<" + f.element + ">" + encoding.EscapeXMLText(xmlSafe(v)) + "</" + f.element + ">")
		}
	}
	b.WriteString("</head><body>")

	content := []ir.Node{doc.Content}
	if doc.Content.Kind == ir.KindDocument {
		content = doc.Content.Children
	}
	for _, o := range e.sequence(content) {
		render(&b, o)
	}
	b.WriteString("</body></opml>")

	out, err := xml.Format([]byte(b.String()), "  ")
	if err != nil {
		ee := apperrors.NewEmit(apperrors.EmitIO, FormatName, "formatting output")
		ee.Err = err
		return nil, ee
	}
	return ir.WithWarnings(out, ws.List()), nil
}

func render(b *strings.Builder, o *entry) {
	b.WriteString("<outline")
	for _, a := range o.attrs {
		b.WriteString(" " + a[0] + `="` + encoding.EscapeXMLAttr(xmlSafe(a[1])) + `"`)
	}
	if len(o.children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	for _, c := range o.children {
		render(b, c)
	}
	b.WriteString("</outline>")
}

// sequence converts sibling blocks, nesting content under headings.
func (e *emitter) sequence(nodes []ir.Node) []*entry {
	type frame struct {
		level int64
		o     *entry
	}
	var (
		top   []*entry
		stack []frame
	)
	add := func(o *entry) {
		if len(stack) == 0 {
			top = append(top, o)
			return
		}
		parent := stack[len(stack)-1].o
		parent.children = append(parent.children, o)
	}

	for _, n := range base.Blocks(nodes) {
		if n.Kind == ir.KindHeading {
			level := n.Props.IntOr(ir.PropLevel, 1)
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			o := e.textEntry(n.Children)
			add(o)
			stack = append(stack, frame{level: level, o: o})
			continue
		}
		for _, o := range e.block(n) {
			add(o)
		}
	}
	return top
}

func (e *emitter) block(n ir.Node) []*entry {
	switch n.Kind {
	case ir.KindList:
		out := make([]*entry, 0, len(n.Children))
		for _, item := range n.Children {
			out = append(out, e.item(item))
		}
		return out
	case ir.KindParagraph:
		return []*entry{e.textEntry(n.Children)}
	case ir.KindDocument, ir.KindDiv, ir.KindBlockquote, ir.KindFigure, ir.KindListItem:
		return e.sequence(n.Children)
	case ir.KindCaption, ir.KindDefinitionTerm:
		return []*entry{e.textEntry(n.Children)}
	case ir.KindDefinitionList, ir.KindDefinitionDesc, ir.KindFootnoteDef:
		e.ws.Once("structure "+string(n.Kind), ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: string(n.Kind)},
			string(n.Kind)+" written as plain outlines"))
		return e.sequence(n.Children)
	case ir.KindCodeBlock:
		e.ws.Once("code", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "code_block"}, "code blocks written as outline text"))
		return []*entry{textAttrs(n.Content(), "")}
	case ir.KindTable:
		e.ws.Once("table", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table"}, "table rows written as outlines"))
		var out []*entry
		for _, r := range base.TableRows(n) {
			out = append(out, textAttrs(strings.Join(r.Cells, " | "), ""))
		}
		return out
	case ir.KindHorizontalRule:
		return nil
	case ir.KindRawBlock:
		e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + n.Props.StringOr(ir.PropFormat, "")},
			"raw content dropped"))
		return nil
	case math.KindDisplay:
		if src, ok := math.Source(n); ok {
			return []*entry{textAttrs(src, "")}
		}
	}
	return []*entry{textAttrs(base.Fallback(e.ws, FormatName, n), "")}
}

// item writes a list item as one outline. The first paragraph supplies the
// text, later blocks become the note and nested lists become children.
func (e *emitter) item(item ir.Node) *entry {
	var (
		text, url string
		seen      bool
		notes     []string
		kids      []*entry
	)
	for _, c := range base.Blocks(item.Children) {
		switch {
		case c.Kind == ir.KindList:
			kids = append(kids, e.block(c)...)
		case !seen && c.Kind == ir.KindParagraph:
			text, url = e.flatten(c.Children)
			seen = true
		default:
			notes = append(notes, base.CollapseSpace(ir.TextContent(c)))
		}
	}

	o := &entry{attrs: [][2]string{{"text", text}}, children: kids}
	if len(notes) > 0 {
		o.attrs = append(o.attrs, [2]string{"_note", strings.Join(notes, "\n")})
	}
	var kept []string
	for _, k := range item.Props.Keys() {
		if strings.HasPrefix(k, AttrPrefix) {
			kept = append(kept, k)
		}
	}
	// Preserved attributes already carry the url.
	if len(kept) == 0 && url != "" {
		o.attrs = append(o.attrs, [2]string{"url", url})
	}
	for _, k := range kept {
		o.attrs = append(o.attrs, [2]string{strings.TrimPrefix(k, AttrPrefix), item.Props.StringOr(k, "")})
	}
	return o
}

func (e *emitter) textEntry(inlines []ir.Node) *entry {
	return textAttrs(e.flatten(inlines))
}

// flatten reduces inline content to outline text and the first link url.
func (e *emitter) flatten(inlines []ir.Node) (string, string) {
	var (
		url  string
		text strings.Builder
	)
	for _, n := range inlines {
		ir.Walk(n, func(c ir.Node) bool {
			switch c.Kind {
			case ir.KindLink:
				if url == "" {
					url = c.Props.StringOr(ir.PropURL, "")
				}
			case ir.KindText, ir.KindSoftBreak, ir.KindLineBreak:
			default:
				e.ws.Once("inline", ir.NewWarning(ir.SeverityInfo, ir.FeatureLost{Feature: "inline formatting"},
					"outline text carries no formatting"))
			}
			return true
		})
		text.WriteString(ir.TextContent(n))
	}
	return base.CollapseSpace(text.String()), url
}

func textAttrs(text, url string) *entry {
	o := &entry{attrs: [][2]string{{"text", text}}}
	if url != "" {
		o.attrs = append(o.attrs, [2]string{"url", url})
	}
	return o
}

// xmlSafe drops characters XML 1.0 cannot represent.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if (r < 0x20 && r != '\t' && r != '\n' && r != '\r') || r == 0xFFFE || r == 0xFFFF {
			return -1
		}
		return r
	}, s)
}
