package ansi

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// SGR parameter strings used by the writer.
const (
	sgrBold      = "1"
	sgrDim       = "2"
	sgrItalic    = "3"
	sgrUnderline = "4"
	sgrStrike    = "9"
	sgrCode      = "36;40"
	sgrLink      = "4;34"
	sgrMath      = "35"
	sgrFootnote  = "36"
)

var headingColors = []string{"34", "32", "33", "36", "35"}

type emitter struct {
	b          strings.Builder
	ws         *ir.Warnings
	active     []string
	listDepth  int
	hyperlinks bool
}

func (e *emitter) write(s string) { e.b.WriteString(s) }

// push starts a style that stays active until the matching pop. Styles
// nest: pop resets the terminal and restores the enclosing styles.
func (e *emitter) push(code string) {
	e.active = append(e.active, code)
	e.write("\x1b[" + code + "m")
}

func (e *emitter) pop() {
	e.active = e.active[:len(e.active)-1]
	e.write("\x1b[0m")
	if len(e.active) > 0 {
		e.write("\x1b[" + strings.Join(e.active, ";") + "m")
	}
}

func (e *emitter) styled(code string, fn func()) {
	e.push(code)
	fn()
	e.pop()
}

func (e *emitter) blocks(nodes []ir.Node) {
	for _, n := range base.Blocks(nodes) {
		e.block(n)
	}
}

func (e *emitter) block(n ir.Node) {
	switch n.Kind {
	case ir.KindDocument, ir.KindDiv, ir.KindFigure, ir.KindTableBody:
		e.blocks(n.Children)
	case ir.KindParagraph, ir.KindCaption:
		e.inlines(n.Children)
		e.write("\n\n")
	case ir.KindHeading:
		level := int(n.Props.IntOr(ir.PropLevel, 1))
		level = min(max(level, 1), 6)
		e.styled(sgrBold+";"+headingColors[min(level, len(headingColors))-1], func() {
			e.write(strings.Repeat("#", level) + " ")
			e.inlines(n.Children)
		})
		e.write("\n\n")
	case ir.KindCodeBlock:
		e.codeBlock(n)
	case ir.KindBlockquote:
		e.blockquote(n)
	case ir.KindList:
		e.list(n)
	case ir.KindTable:
		e.table(n)
	case ir.KindHorizontalRule:
		e.styled(sgrDim, func() { e.write(strings.Repeat("─", 40)) })
		e.write("\n\n")
	case ir.KindRawBlock:
		e.rawBlock(n)
	case ir.KindDefinitionList:
		e.blocks(n.Children)
		e.write("\n")
	case ir.KindDefinitionTerm:
		e.styled(sgrBold, func() { e.inlines(n.Children) })
		e.write("\n")
	case ir.KindDefinitionDesc:
		e.write("  ")
		e.inlineOrBlocks(n.Children)
		e.write("\n")
	case ir.KindFootnoteDef:
		e.styled(sgrFootnote, func() { e.write("[" + n.Props.StringOr(ir.PropLabel, "?") + "] ") })
		e.inlineOrBlocks(n.Children)
		e.write("\n")
	case math.KindDisplay:
		e.math(n)
		e.write("\n\n")
	default:
		text := base.Fallback(e.ws, FormatName, n)
		e.write(text)
		e.write("\n\n")
	}
}

// inlineOrBlocks renders the children of containers that may hold either
// a paragraph or bare inlines, without the paragraph spacing.
func (e *emitter) inlineOrBlocks(children []ir.Node) {
	for i, c := range base.Blocks(children) {
		if i > 0 {
			e.write(" ")
		}
		if c.Kind == ir.KindParagraph {
			e.inlines(c.Children)
			continue
		}
		e.write(base.CollapseSpace(ir.TextContent(c)))
	}
}

func (e *emitter) rawBlock(n ir.Node) {
	if f := n.Props.StringOr(ir.PropFormat, ""); f != "" && f != FormatName {
		e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + f}, "raw content for another format dropped"))
		return
	}
	e.write(n.Content())
	e.write("\n\n")
}

func (e *emitter) codeBlock(n ir.Node) {
	e.styled(sgrDim, func() {
		e.write("┌─")
		if lang := n.Props.StringOr(ir.PropLanguage, ""); lang != "" {
			e.write(" " + lang + " ")
		}
		e.write("─")
	})
	e.write("\n")
	for _, line := range base.Lines(n.Content()) {
		e.styled(sgrDim, func() { e.write("│ ") })
		e.styled(sgrCode, func() { e.write(line) })
		e.write("\n")
	}
	e.styled(sgrDim, func() { e.write("└─") })
	e.write("\n\n")
}

func (e *emitter) blockquote(n ir.Node) {
	inner := &emitter{ws: e.ws, hyperlinks: e.hyperlinks}
	inner.blocks(n.Children)
	for _, line := range base.Lines(strings.TrimRight(inner.b.String(), "\n")) {
		e.styled(sgrDim, func() { e.write("│ ") })
		e.styled(sgrItalic, func() { e.write(line) })
		e.write("\n")
	}
	e.write("\n")
}

func (e *emitter) list(n ir.Node) {
	ordered := n.Props.BoolOr(ir.PropOrdered, false)
	number := n.Props.IntOr(ir.PropStart, 1)
	e.listDepth++
	for _, item := range n.Children {
		e.write(strings.Repeat("  ", e.listDepth-1))
		if ordered {
			e.styled("33", func() { e.write(strconv.FormatInt(number, 10) + ". ") })
			number++
		} else {
			e.styled("32", func() { e.write("• ") })
		}
		e.listItem(item)
	}
	e.listDepth--
	if e.listDepth == 0 {
		e.write("\n")
	}
}

func (e *emitter) listItem(item ir.Node) {
	wrote := false
	for _, c := range base.Blocks(item.Children) {
		switch c.Kind {
		case ir.KindParagraph:
			if wrote {
				e.write(strings.Repeat("  ", e.listDepth))
			}
			e.inlines(c.Children)
			e.write("\n")
		case ir.KindList:
			if !wrote {
				e.write("\n")
			}
			e.list(c)
		default:
			if wrote {
				e.write(strings.Repeat("  ", e.listDepth))
			}
			e.write(base.CollapseSpace(ir.TextContent(c)))
			e.write("\n")
			e.ws.Once("list block", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "list item blocks"},
				"block content in list items flattened to text"))
		}
		wrote = true
	}
	if !wrote {
		e.write("\n")
	}
}

func (e *emitter) table(n ir.Node) {
	rows := base.TableRows(n)
	if len(rows) == 0 {
		return
	}
	var widths []int
	for _, r := range rows {
		if r.Nested {
			e.ws.Once("nested", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table cell structure"},
				"block content in cells flattened to text"))
		}
		for i, c := range r.Cells {
			if i >= len(widths) {
				widths = append(widths, 1)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	e.border(widths, "┌", "┬", "┐")
	for i, r := range rows {
		e.write("│")
		for c, w := range widths {
			cell := ""
			if c < len(r.Cells) {
				cell = r.Cells[c]
			}
			pad := strings.Repeat(" ", w-utf8.RuneCountInString(cell))
			if r.Header {
				e.styled(sgrBold, func() { e.write(" " + cell + pad) })
			} else {
				e.write(" " + cell + pad)
			}
			e.write(" │")
		}
		e.write("\n")
		if r.Header && i+1 < len(rows) && !rows[i+1].Header {
			e.border(widths, "├", "┼", "┤")
		}
	}
	e.border(widths, "└", "┴", "┘")
	e.write("\n")
}

func (e *emitter) border(widths []int, left, mid, right string) {
	e.styled(sgrDim, func() {
		e.write(left)
		for i, w := range widths {
			e.write(strings.Repeat("─", w+2))
			if i < len(widths)-1 {
				e.write(mid)
			}
		}
		e.write(right)
	})
	e.write("\n")
}

func (e *emitter) inlines(nodes []ir.Node) {
	for _, n := range nodes {
		e.inline(n)
	}
}

func (e *emitter) inline(n ir.Node) {
	switch n.Kind {
	case ir.KindText:
		e.write(StripEscapes(n.Content()))
	case ir.KindStrong:
		e.styled(sgrBold, func() { e.inlines(n.Children) })
	case ir.KindEmphasis:
		e.styled(sgrItalic, func() { e.inlines(n.Children) })
	case ir.KindUnderline:
		e.styled(sgrUnderline, func() { e.inlines(n.Children) })
	case ir.KindStrikeout:
		e.styled(sgrStrike, func() { e.inlines(n.Children) })
	case ir.KindSubscript, ir.KindSuperscript:
		e.ws.Once("scripts", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: string(n.Kind)},
			"sub- and superscripts rendered dimmed"))
		e.styled(sgrDim, func() { e.inlines(n.Children) })
	case ir.KindCode:
		e.styled(sgrCode, func() { e.write(n.Content()) })
	case ir.KindSpan, ir.KindCite:
		if code, ok := colorCode(n.Props.StringOr(ir.PropStyleColor, "")); ok {
			e.styled(code, func() { e.inlines(n.Children) })
			return
		}
		e.inlines(n.Children)
	case ir.KindLink:
		e.link(n)
	case ir.KindImage:
		e.styled(sgrDim, func() {
			e.write("[Image")
			if alt := n.Props.StringOr(ir.PropAlt, ""); alt != "" {
				e.write(": " + alt)
			}
			if url := n.Props.StringOr(ir.PropURL, ""); url != "" {
				e.write(" (" + url + ")")
			}
			e.write("]")
		})
	case ir.KindLineBreak:
		e.write("\n")
	case ir.KindSoftBreak:
		e.write(" ")
	case ir.KindFootnoteRef:
		e.styled(sgrFootnote, func() { e.write("[" + n.Props.StringOr(ir.PropLabel, "?") + "]") })
	case ir.KindSmallCaps:
		e.write(strings.ToUpper(ir.TextContent(n)))
	case ir.KindQuoted:
		lq, rq := "“", "”"
		if n.Props.StringOr("quote_type", "double") == "single" {
			lq, rq = "‘", "’"
		}
		e.write(lq)
		e.inlines(n.Children)
		e.write(rq)
	case ir.KindRawInline:
		if f := n.Props.StringOr(ir.PropFormat, ""); f == "" || f == FormatName {
			e.write(n.Content())
		}
	case math.KindInline:
		e.math(n)
	default:
		e.write(base.Fallback(e.ws, FormatName, n))
	}
}

func (e *emitter) link(n ir.Node) {
	url := n.Props.StringOr(ir.PropURL, "")
	if url == "" {
		e.inlines(n.Children)
		return
	}
	if e.hyperlinks {
		e.write("\x1b]8;;" + url + "\x1b\\")
		e.styled(sgrLink, func() { e.inlines(n.Children) })
		e.write("\x1b]8;;\x1b\\")
		return
	}
	e.styled(sgrLink, func() { e.inlines(n.Children) })
	e.styled(sgrDim, func() { e.write(" (" + url + ")") })
}

func (e *emitter) math(n ir.Node) {
	src, ok := math.Source(n)
	if !ok {
		e.write(base.Fallback(e.ws, FormatName, n))
		return
	}
	e.styled(sgrMath, func() { e.write(src) })
}

// colorCode maps a style:color value written by the reader back to SGR.
func colorCode(color string) (string, bool) {
	if color == "" {
		return "", false
	}
	name, bright := strings.CutPrefix(color, "bright-")
	for i, c := range colorNames {
		if c == name {
			if bright {
				return strconv.Itoa(90 + i), true
			}
			return strconv.Itoa(30 + i), true
		}
	}
	if len(color) != 7 || color[0] != '#' {
		return "", false
	}
	rgb, err := strconv.ParseUint(color[1:], 16, 32)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("38;2;%d;%d;%d", rgb>>16, rgb>>8&0xff, rgb&0xff), true
}

// Emit implements plugins.Writer. Option "hyperlinks=true" writes links as
// OSC 8 hyperlinks instead of appending the URL.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var ws ir.Warnings
	e := &emitter{ws: &ws, hyperlinks: opts.Option("hyperlinks", "false") == "true"}
	if doc.Content.Kind == ir.KindDocument {
		e.blocks(doc.Content.Children)
	} else {
		e.blocks([]ir.Node{doc.Content})
	}
	out := strings.TrimRight(e.b.String(), "\n")
	if out != "" {
		out += "\n"
	}
	return ir.WithWarnings([]byte(out), ws.List()), nil
}
