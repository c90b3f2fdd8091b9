package txt

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

type emitter struct {
	b      strings.Builder
	ws     *ir.Warnings
	indent string
}

func (e *emitter) write(s string) { e.b.WriteString(s) }

// line writes one output line at the current indentation.
func (e *emitter) line(s string) {
	e.write(e.indent + s + "\n")
}

func (e *emitter) gap() {
	e.write("\n")
}

func (e *emitter) blocks(nodes []ir.Node) {
	for _, n := range base.Blocks(nodes) {
		e.block(n)
	}
}

func (e *emitter) block(n ir.Node) {
	switch n.Kind {
	case ir.KindDocument, ir.KindDiv, ir.KindFigure:
		e.blocks(n.Children)
	case ir.KindParagraph, ir.KindCaption, ir.KindDefinitionTerm:
		e.line(e.inlineText(n.Children))
		e.gap()
	case ir.KindHeading:
		e.line(e.inlineText(n.Children))
		e.gap()
		e.ws.Once("heading", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "heading"},
			"headings written as plain lines"))
	case ir.KindCodeBlock, ir.KindRawBlock:
		if n.Kind == ir.KindRawBlock {
			if f := n.Props.StringOr(ir.PropFormat, ""); f != "" && f != FormatName {
				e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + f}, "raw content for another format dropped"))
				return
			}
		}
		for _, l := range base.Lines(n.Content()) {
			e.line(l)
		}
		e.gap()
	case ir.KindBlockquote:
		saved := e.indent
		e.indent += "> "
		e.blocks(n.Children)
		e.indent = saved
	case ir.KindList:
		e.list(n)
		e.gap()
	case ir.KindTable:
		e.table(n)
		e.gap()
	case ir.KindHorizontalRule:
		if n.Props.BoolOr(ir.PropLayoutPageBreak, false) {
			e.write("\f")
			return
		}
		e.line(strings.Repeat("-", 40))
		e.gap()
	case ir.KindDefinitionList:
		e.blocks(n.Children)
	case ir.KindDefinitionDesc:
		saved := e.indent
		e.indent += "    "
		e.blocks(n.Children)
		e.indent = saved
	case ir.KindFootnoteDef:
		e.line("[" + n.Props.StringOr(ir.PropLabel, "?") + "] " + base.CollapseSpace(e.inlineText(flatten(n.Children))))
		e.gap()
	case math.KindDisplay:
		e.line(e.mathText(n))
		e.gap()
	default:
		e.line(base.Fallback(e.ws, FormatName, n))
		e.gap()
	}
}

// flatten turns paragraphs into their inlines separated by spaces.
func flatten(children []ir.Node) []ir.Node {
	var out []ir.Node
	for i, c := range base.Blocks(children) {
		if i > 0 {
			out = append(out, ir.NewNode(ir.KindSoftBreak))
		}
		if c.Kind == ir.KindParagraph {
			out = append(out, c.Children...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (e *emitter) list(n ir.Node) {
	ordered := n.Props.BoolOr(ir.PropOrdered, false)
	number := n.Props.IntOr(ir.PropStart, 1)
	for _, item := range n.Children {
		marker := "- "
		if ordered {
			marker = strconv.FormatInt(number, 10) + ". "
			number++
		}
		e.listItem(item, marker)
	}
}

func (e *emitter) listItem(item ir.Node, marker string) {
	saved := e.indent
	first := true
	for _, c := range base.Blocks(item.Children) {
		switch c.Kind {
		case ir.KindList:
			e.indent = saved + "  "
			e.list(c)
		default:
			text := e.inlineText(flatten([]ir.Node{c}))
			if first {
				e.indent = saved
				e.line(marker + text)
			} else {
				e.indent = saved + strings.Repeat(" ", len(marker))
				e.line(text)
			}
		}
		first = false
	}
	if first {
		e.line(marker)
	}
	e.indent = saved
}

func (e *emitter) table(n ir.Node) {
	rows := base.TableRows(n)
	for _, r := range rows {
		if r.Nested {
			e.ws.Once("nested", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table cell structure"},
				"block content in cells flattened to text"))
		}
		cells := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			cells[i] = base.CollapseSpace(c)
		}
		e.line(strings.Join(cells, " | "))
	}
	if len(rows) > 0 {
		e.ws.Once("table", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table"},
			"tables written as pipe-separated lines"))
	}
}

func (e *emitter) inlineText(nodes []ir.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		e.inline(&b, n)
	}
	return b.String()
}

func (e *emitter) inline(b *strings.Builder, n ir.Node) {
	switch n.Kind {
	case ir.KindText, ir.KindCode:
		b.WriteString(n.Content())
	case ir.KindStrong, ir.KindEmphasis, ir.KindUnderline, ir.KindStrikeout,
		ir.KindSubscript, ir.KindSuperscript:
		e.ws.Once("styling", ir.NewWarning(ir.SeverityInfo, ir.FeatureLost{Feature: "inline styling"},
			"character styling has no plain text form"))
		b.WriteString(e.inlineText(n.Children))
	case ir.KindSpan, ir.KindCite:
		b.WriteString(e.inlineText(n.Children))
	case ir.KindSmallCaps:
		b.WriteString(strings.ToUpper(e.inlineText(n.Children)))
	case ir.KindQuoted:
		b.WriteString("\"" + e.inlineText(n.Children) + "\"")
	case ir.KindLink:
		text := e.inlineText(n.Children)
		url := n.Props.StringOr(ir.PropURL, "")
		if url == "" || url == text {
			b.WriteString(text)
			return
		}
		b.WriteString(text + " (" + url + ")")
	case ir.KindImage:
		b.WriteString("[Image")
		if alt := n.Props.StringOr(ir.PropAlt, ""); alt != "" {
			b.WriteString(": " + alt)
		}
		b.WriteString("]")
	case ir.KindLineBreak:
		b.WriteString("\n" + e.indent)
	case ir.KindSoftBreak:
		b.WriteString(" ")
	case ir.KindFootnoteRef:
		b.WriteString("[" + n.Props.StringOr(ir.PropLabel, "?") + "]")
	case ir.KindRawInline:
		if f := n.Props.StringOr(ir.PropFormat, ""); f == "" || f == FormatName {
			b.WriteString(n.Content())
		}
	case math.KindInline:
		b.WriteString(e.mathText(n))
	default:
		b.WriteString(base.Fallback(e.ws, FormatName, n))
	}
}

func (e *emitter) mathText(n ir.Node) string {
	if src, ok := math.Source(n); ok {
		return src
	}
	return base.Fallback(e.ws, FormatName, n)
}

// Emit implements plugins.Writer.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var ws ir.Warnings
	e := &emitter{ws: &ws}
	if doc.Content.Kind == ir.KindDocument {
		e.blocks(doc.Content.Children)
	} else {
		e.blocks([]ir.Node{doc.Content})
	}

	out := strings.TrimRight(e.b.String(), "\n")
	if out != "" {
		out += "\n"
	}
	if src, ok := opts.SourceMetadata(doc, FormatName); ok && src.StringOr(SourceLineEnding, "\n") == "\r\n" {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return ir.WithWarnings([]byte(out), ws.List()), nil
}
