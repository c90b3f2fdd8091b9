package markdown

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/encoding"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// GFM has no syntax for these; inline HTML is the common fallback.
var htmlTags = map[ir.Kind]string{
	ir.KindUnderline:   "u",
	ir.KindSubscript:   "sub",
	ir.KindSuperscript: "sup",
}

type emitter struct {
	b           strings.Builder
	ws          *ir.Warnings
	doc         *ir.Document
	resourceDir string
}

func (e *emitter) write(s string) { e.b.WriteString(s) }

func (e *emitter) blocks(nodes []ir.Node) {
	for _, n := range base.Blocks(nodes) {
		e.block(n)
	}
}

// sub renders blocks into a separate buffer, sharing warnings.
func (e *emitter) sub(nodes []ir.Node) string {
	inner := &emitter{ws: e.ws, doc: e.doc, resourceDir: e.resourceDir}
	inner.blocks(nodes)
	return strings.TrimRight(inner.b.String(), "\n")
}

func (e *emitter) block(n ir.Node) {
	switch n.Kind {
	case ir.KindDocument, ir.KindDiv, ir.KindFigure:
		e.blocks(n.Children)
	case ir.KindParagraph, ir.KindCaption:
		e.write(e.inlines(n.Children) + "\n\n")
	case ir.KindHeading:
		level := min(max(int(n.Props.IntOr(ir.PropLevel, 1)), 1), 6)
		e.write(strings.Repeat("#", level) + " " + encoding.EscapeSingleLine(e.inlines(n.Children)) + "\n\n")
	case ir.KindCodeBlock:
		e.codeBlock(n)
	case ir.KindBlockquote:
		for _, line := range strings.Split(e.sub(n.Children), "\n") {
			e.write(strings.TrimRight("> "+line, " ") + "\n")
		}
		e.write("\n")
	case ir.KindList:
		e.write(e.list(n) + "\n")
	case ir.KindTable:
		e.table(n)
	case ir.KindHorizontalRule:
		e.write("---\n\n")
	case ir.KindRawBlock:
		switch f := n.Props.StringOr(ir.PropFormat, ""); f {
		case "", FormatName, "html":
			e.write(n.Content() + "\n\n")
		default:
			e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + f}, "raw content for another format dropped"))
		}
	case ir.KindDefinitionList:
		e.ws.Once("definitions", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "definition_list"},
			"definition lists written as bold terms with indented descriptions"))
		e.blocks(n.Children)
	case ir.KindDefinitionTerm:
		e.write("**" + e.inlines(n.Children) + "**\n\n")
	case ir.KindDefinitionDesc:
		for _, line := range strings.Split(e.sub(n.Children), "\n") {
			e.write(strings.TrimRight("    "+line, " ") + "\n")
		}
		e.write("\n")
	case ir.KindFootnoteDef:
		body := strings.ReplaceAll(e.sub(n.Children), "\n", "\n    ")
		e.write("[^" + n.Props.StringOr(ir.PropLabel, "?") + "]: " + body + "\n\n")
	case math.KindDisplay:
		if src, ok := math.Source(n); ok {
			e.write("$$\n" + src + "\n$$\n\n")
			return
		}
		e.write(encoding.EscapeMarkdown(base.Fallback(e.ws, FormatName, n)) + "\n\n")
	default:
		e.write(encoding.EscapeMarkdown(base.Fallback(e.ws, FormatName, n)) + "\n\n")
	}
}

func (e *emitter) codeBlock(n ir.Node) {
	content := n.Content()
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	e.write(fence + n.Props.StringOr(ir.PropLanguage, "") + "\n")
	e.write(content)
	if !strings.HasSuffix(content, "\n") {
		e.write("\n")
	}
	e.write(fence + "\n\n")
}

// list renders a list without its trailing blank line.
func (e *emitter) list(n ir.Node) string {
	var b strings.Builder
	ordered := n.Props.BoolOr(ir.PropOrdered, false)
	number := n.Props.IntOr(ir.PropStart, 1)
	for _, item := range n.Children {
		marker := "- "
		if ordered {
			marker = strconv.FormatInt(number, 10) + ". "
			number++
		}
		if c, ok := item.Props.GetBool("checked"); ok {
			if c {
				marker += "[x] "
			} else {
				marker += "[ ] "
			}
		}
		pad := strings.Repeat(" ", len(marker))
		body := e.listItem(item)
		lines := strings.Split(body, "\n")
		for i, line := range lines {
			switch {
			case i == 0:
				b.WriteString(marker + line + "\n")
			case line == "":
				b.WriteString("\n")
			default:
				b.WriteString(pad + line + "\n")
			}
		}
	}
	return b.String()
}

func (e *emitter) listItem(item ir.Node) string {
	blocks := base.Blocks(item.Children)
	if len(blocks) == 0 {
		return ""
	}
	// A tight item is one paragraph, optionally followed by sublists.
	tight := true
	for i, c := range blocks {
		if (i == 0 && c.Kind != ir.KindParagraph && c.Kind != ir.KindList) || (i > 0 && c.Kind != ir.KindList) {
			tight = false
		}
	}
	if !tight {
		return e.sub(item.Children)
	}
	var parts []string
	for _, c := range blocks {
		if c.Kind == ir.KindParagraph {
			parts = append(parts, e.inlines(c.Children))
			continue
		}
		parts = append(parts, strings.TrimRight(e.list(c), "\n"))
	}
	return strings.Join(parts, "\n")
}

func (e *emitter) table(n ir.Node) {
	rows := base.TableRows(n)
	if len(rows) == 0 {
		return
	}
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r.Cells))
		if r.Nested {
			e.ws.Once("nested", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table cell structure"},
				"block content in cells flattened to text"))
		}
	}
	if !rows[0].Header {
		e.ws.Once("header", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table header"},
			"GFM tables need a header row; the first row was promoted"))
	}
	for i, r := range rows {
		if i > 0 && r.Header {
			e.ws.Once("header rows", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table header"},
				"only one header row is supported; later header rows written as body rows"))
		}
		e.write("|")
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(r.Cells) {
				cell = encoding.EscapeMarkdownCell(base.CollapseSpace(r.Cells[c]))
			}
			e.write(" " + cell + " |")
		}
		e.write("\n")
		if i == 0 {
			e.write("|" + strings.Repeat(" --- |", cols) + "\n")
		}
	}
	e.write("\n")
}

func (e *emitter) inlines(nodes []ir.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		e.inline(&b, n)
	}
	return b.String()
}

func (e *emitter) inline(b *strings.Builder, n ir.Node) {
	switch n.Kind {
	case ir.KindText:
		b.WriteString(encoding.EscapeMarkdown(n.Content()))
	case ir.KindEmphasis:
		b.WriteString("*" + e.inlines(n.Children) + "*")
	case ir.KindStrong:
		b.WriteString("**" + e.inlines(n.Children) + "**")
	case ir.KindStrikeout:
		b.WriteString("~~" + e.inlines(n.Children) + "~~")
	case ir.KindUnderline, ir.KindSubscript, ir.KindSuperscript:
		tag := htmlTags[n.Kind]
		b.WriteString("<" + tag + ">" + e.inlines(n.Children) + "</" + tag + ">")
	case ir.KindCode:
		b.WriteString(codeSpan(n.Content()))
	case ir.KindLink:
		b.WriteString("[" + e.inlines(n.Children) + "](" + destination(n.Props.StringOr(ir.PropURL, "")) + title(n) + ")")
	case ir.KindImage:
		e.image(b, n)
	case ir.KindLineBreak:
		b.WriteString("\\\n")
	case ir.KindSoftBreak:
		b.WriteString("\n")
	case ir.KindFootnoteRef:
		b.WriteString("[^" + n.Props.StringOr(ir.PropLabel, "?") + "]")
	case ir.KindSpan, ir.KindCite:
		if n.Props.Has(ir.PropStyleColor) {
			e.ws.Once("color", ir.NewWarning(ir.SeverityInfo, ir.FeatureLost{Feature: ir.PropStyleColor}, "text color dropped"))
		}
		b.WriteString(e.inlines(n.Children))
	case ir.KindSmallCaps:
		e.ws.Once("small caps", ir.NewWarning(ir.SeverityInfo, ir.Simplified{Feature: "small_caps"}, "small caps written in upper case"))
		b.WriteString(strings.ToUpper(e.inlines(n.Children)))
	case ir.KindQuoted:
		b.WriteString("\"" + e.inlines(n.Children) + "\"")
	case ir.KindRawInline:
		switch f := n.Props.StringOr(ir.PropFormat, ""); f {
		case "", FormatName, "html":
			b.WriteString(n.Content())
		default:
			e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + f}, "raw content for another format dropped"))
		}
	case math.KindInline:
		if src, ok := math.Source(n); ok {
			b.WriteString("$" + src + "$")
			return
		}
		b.WriteString(encoding.EscapeMarkdown(base.Fallback(e.ws, FormatName, n)))
	default:
		b.WriteString(encoding.EscapeMarkdown(base.Fallback(e.ws, FormatName, n)))
	}
}

func (e *emitter) image(b *strings.Builder, n ir.Node) {
	url := n.Props.StringOr(ir.PropURL, "")
	if ref, ok := n.Props.GetString(ir.PropResource); ok {
		r, found := e.doc.Resource(ir.ResourceID(ref))
		if found {
			exp := ir.ExportedResource{ID: ir.ResourceID(ref), Name: r.Name, MimeType: r.MimeType}
			url = e.resourceDir + exp.FileName()
		} else {
			e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.ResourceFailed{ID: ir.ResourceID(ref)}, "image references a missing resource"))
		}
	}
	alt := n.Props.StringOr(ir.PropAlt, ir.TextContent(n))
	b.WriteString("![" + encoding.EscapeMarkdown(alt) + "](" + destination(url) + title(n) + ")")
}

func title(n ir.Node) string {
	t, ok := n.Props.GetString(ir.PropTitle)
	if !ok || t == "" {
		return ""
	}
	return " \"" + strings.ReplaceAll(t, "\"", "\\\"") + "\""
}

// destination wraps URLs containing spaces or parentheses in angle brackets.
func destination(url string) string {
	if strings.ContainsAny(url, " ()") {
		return "<" + url + ">"
	}
	return url
}

// codeSpan picks a backtick run longer than any run in s.
func codeSpan(s string) string {
	longest, run := 0, 0
	for _, c := range s {
		if c == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", longest+1)
	if longest > 0 || strings.HasPrefix(s, " ") && strings.HasSuffix(s, " ") && strings.TrimSpace(s) != "" {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}
