package html

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/encoding"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

var inlineTags = map[ir.Kind]string{
	ir.KindEmphasis:    "em",
	ir.KindStrong:      "strong",
	ir.KindUnderline:   "u",
	ir.KindStrikeout:   "s",
	ir.KindSubscript:   "sub",
	ir.KindSuperscript: "sup",
	ir.KindQuoted:      "q",
	ir.KindCite:        "cite",
}

// Emit implements plugins.Writer.
//
// Options: "fragment=true" writes only the body content. "resource_dir"
// makes images reference exported files under that prefix instead of
// inlining them as data: URIs.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var ws ir.Warnings
	fragment := false
	if src, ok := opts.SourceMetadata(doc, FormatName); ok {
		fragment = src.BoolOr(SourceFragment, false)
	}
	if v := opts.Option("fragment", ""); v != "" {
		fragment = v == "true"
	}
	resourceDir, exported := opts.Extra["resource_dir"]
	e := &emitter{ws: &ws, doc: doc, resourceDir: resourceDir, export: exported}

	if !fragment {
		e.header(doc.Metadata)
	}
	if doc.Content.Kind == ir.KindDocument {
		e.blocks(doc.Content.Children)
	} else {
		e.blocks([]ir.Node{doc.Content})
	}
	if !fragment {
		e.write("</body>\n</html>\n")
	}
	return ir.WithWarnings([]byte(e.b.String()), ws.List()), nil
}

// ExportResources implements plugins.ResourceExporter. Resources are only
// exported when the "resource_dir" option is set; otherwise they are
// inlined.
func (h *Handler) ExportResources(doc *ir.Document, opts plugins.EmitOptions) []ir.ExportedResource {
	if _, ok := opts.Extra["resource_dir"]; !ok {
		return nil
	}
	refs := make(map[ir.ResourceID]bool)
	for _, id := range doc.ResourceRefs() {
		refs[id] = true
	}
	var out []ir.ExportedResource
	for _, r := range doc.ExportResources() {
		if refs[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

type emitter struct {
	b           strings.Builder
	ws          *ir.Warnings
	doc         *ir.Document
	resourceDir string
	export      bool
}

func (e *emitter) write(s string) { e.b.WriteString(s) }

func (e *emitter) header(meta ir.Properties) {
	e.write("<!DOCTYPE html>\n<html")
	if lang, ok := meta.GetString(ir.MetaLanguage); ok {
		e.write(` lang="` + encoding.EscapeHTML(lang) + `"`)
	}
	e.write(">\n<head>\n<meta charset=\"utf-8\">\n")
	e.write("<title>" + encoding.EscapeHTML(meta.StringOr(ir.MetaTitle, "")) + "</title>\n")
	for _, k := range meta.Keys() {
		if k == ir.MetaTitle || k == ir.MetaLanguage {
			continue
		}
		v, ok := meta.GetString(k)
		if !ok {
			e.ws.Once("metadata", ir.NewWarning(ir.SeverityInfo, ir.FeatureLost{Feature: "metadata"},
				"non-string metadata omitted from <head>"))
			continue
		}
		e.write(`<meta name="` + encoding.EscapeHTML(k) + `" content="` + encoding.EscapeHTML(v) + "\">\n")
	}
	e.write("</head>\n<body>\n")
}

func (e *emitter) blocks(nodes []ir.Node) {
	for _, n := range base.Blocks(nodes) {
		e.block(n)
	}
}

// flow writes inline-only content inline and anything else as blocks.
func (e *emitter) flow(nodes []ir.Node) {
	for _, n := range nodes {
		if !base.IsInline(n.Kind) {
			e.write("\n")
			e.blocks(nodes)
			return
		}
	}
	e.write(e.inlines(nodes))
}

func (e *emitter) block(n ir.Node) {
	switch n.Kind {
	case ir.KindDocument:
		e.blocks(n.Children)
	case ir.KindParagraph:
		e.write("<p" + attrs(n) + ">" + e.inlines(n.Children) + "</p>\n")
	case ir.KindHeading:
		tag := "h" + strconv.Itoa(min(max(int(n.Props.IntOr(ir.PropLevel, 1)), 1), 6))
		e.write("<" + tag + attrs(n) + ">" + e.inlines(n.Children) + "</" + tag + ">\n")
	case ir.KindCodeBlock:
		e.write("<pre><code")
		if lang := n.Props.StringOr(ir.PropLanguage, ""); lang != "" {
			e.write(` class="language-` + encoding.EscapeHTML(lang) + `"`)
		}
		e.write(">" + encoding.EscapeHTML(n.Content()) + "</code></pre>\n")
	case ir.KindBlockquote:
		e.container("blockquote", "", n)
	case ir.KindList:
		e.list(n)
	case ir.KindListItem, ir.KindDiv:
		e.container("div", attrs(n), n)
	case ir.KindTable:
		e.table(n)
	case ir.KindHorizontalRule:
		e.write("<hr>\n")
	case ir.KindFigure:
		e.container("figure", attrs(n), n)
	case ir.KindCaption:
		e.write("<figcaption>" + e.inlines(n.Children) + "</figcaption>\n")
	case ir.KindRawBlock:
		if f := n.Props.StringOr(ir.PropFormat, ""); f != "" && f != FormatName {
			e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + f}, "raw content for another format dropped"))
			return
		}
		e.write(n.Content() + "\n")
	case ir.KindDefinitionList:
		e.container("dl", "", n)
	case ir.KindDefinitionTerm:
		e.write("<dt>" + e.inlines(n.Children) + "</dt>\n")
	case ir.KindDefinitionDesc:
		e.write("<dd>")
		e.flow(n.Children)
		e.write("</dd>\n")
	case ir.KindFootnoteDef:
		label := n.Props.StringOr(ir.PropLabel, "")
		e.container("div", ` class="footnote" id="fn-`+encoding.EscapeHTML(label)+`"`, n)
	case math.KindDisplay:
		if src, ok := math.Source(n); ok {
			e.write(`<div class="math display">\[` + encoding.EscapeHTML(src) + "\\]</div>\n")
			return
		}
		e.write("<p>" + encoding.EscapeHTML(base.Fallback(e.ws, FormatName, n)) + "</p>\n")
	default:
		e.write("<p>" + encoding.EscapeHTML(base.Fallback(e.ws, FormatName, n)) + "</p>\n")
	}
}

func (e *emitter) container(tag, attributes string, n ir.Node) {
	e.write("<" + tag + attributes + ">\n")
	e.blocks(n.Children)
	e.write("</" + tag + ">\n")
}

func (e *emitter) list(n ir.Node) {
	tag := "ul"
	open := "<ul>"
	if n.Props.BoolOr(ir.PropOrdered, false) {
		tag = "ol"
		open = "<ol>"
		if start := n.Props.IntOr(ir.PropStart, 1); start != 1 {
			open = `<ol start="` + strconv.FormatInt(start, 10) + `">`
		}
	}
	e.write(open + "\n")
	for _, item := range n.Children {
		e.write("<li>")
		e.flow(item.Children)
		e.write("</li>\n")
	}
	e.write("</" + tag + ">\n")
}

func (e *emitter) table(n ir.Node) {
	e.write("<table" + attrs(n) + ">\n")
	for _, c := range n.Children {
		switch c.Kind {
		case ir.KindCaption:
			e.write("<caption>" + e.inlines(c.Children) + "</caption>\n")
		case ir.KindTableHead:
			e.section("thead", c)
		case ir.KindTableBody:
			e.section("tbody", c)
		case ir.KindTableFoot:
			e.section("tfoot", c)
		case ir.KindTableRow:
			e.row(c)
		default:
			e.write("<tr><td>" + encoding.EscapeHTML(base.Fallback(e.ws, FormatName, c)) + "</td></tr>\n")
		}
	}
	e.write("</table>\n")
}

func (e *emitter) section(tag string, n ir.Node) {
	e.write("<" + tag + ">\n")
	for _, r := range n.Children {
		e.row(r)
	}
	e.write("</" + tag + ">\n")
}

func (e *emitter) row(n ir.Node) {
	e.write("<tr>")
	for _, cell := range n.Children {
		tag := "td"
		if base.HeaderCell(cell) {
			tag = "th"
		}
		e.write("<" + tag)
		if v := cell.Props.IntOr(ir.PropColspan, 1); v > 1 {
			e.write(` colspan="` + strconv.FormatInt(v, 10) + `"`)
		}
		if v := cell.Props.IntOr(ir.PropRowspan, 1); v > 1 {
			e.write(` rowspan="` + strconv.FormatInt(v, 10) + `"`)
		}
		if align := cell.Props.StringOr(ir.PropAlign, ""); align != "" {
			e.write(` style="text-align:` + encoding.EscapeHTML(align) + `"`)
		}
		e.write(">")
		e.flow(cell.Children)
		e.write("</" + tag + ">")
	}
	e.write("</tr>\n")
}

func (e *emitter) inlines(nodes []ir.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		e.inline(&b, n)
	}
	return b.String()
}

func (e *emitter) inline(b *strings.Builder, n ir.Node) {
	if tag, ok := inlineTags[n.Kind]; ok {
		b.WriteString("<" + tag + ">" + e.inlines(n.Children) + "</" + tag + ">")
		return
	}
	switch n.Kind {
	case ir.KindText:
		b.WriteString(encoding.EscapeHTML(n.Content()))
	case ir.KindCode:
		b.WriteString("<code>" + encoding.EscapeHTML(n.Content()) + "</code>")
	case ir.KindLink:
		b.WriteString(`<a href="` + encoding.EscapeHTML(n.Props.StringOr(ir.PropURL, "")) + `"`)
		if t := n.Props.StringOr(ir.PropTitle, ""); t != "" {
			b.WriteString(` title="` + encoding.EscapeHTML(t) + `"`)
		}
		b.WriteString(">" + e.inlines(n.Children) + "</a>")
	case ir.KindImage:
		e.image(b, n)
	case ir.KindLineBreak:
		b.WriteString("<br>")
	case ir.KindSoftBreak:
		b.WriteString("\n")
	case ir.KindSpan, ir.KindSmallCaps:
		var style []string
		if n.Kind == ir.KindSmallCaps {
			style = append(style, "font-variant:small-caps")
		}
		if c := n.Props.StringOr(ir.PropStyleColor, ""); c != "" {
			style = append(style, "color:"+c)
		}
		b.WriteString("<span" + attrs(n))
		if len(style) > 0 {
			b.WriteString(` style="` + encoding.EscapeHTML(strings.Join(style, ";")) + `"`)
		}
		b.WriteString(">" + e.inlines(n.Children) + "</span>")
	case ir.KindFootnoteRef:
		label := encoding.EscapeHTML(n.Props.StringOr(ir.PropLabel, ""))
		b.WriteString(`<sup class="footnote-ref"><a href="#fn-` + label + `" id="fnref-` + label + `">` + label + "</a></sup>")
	case ir.KindRawInline:
		if f := n.Props.StringOr(ir.PropFormat, ""); f != "" && f != FormatName {
			e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "raw " + f}, "raw content for another format dropped"))
			return
		}
		b.WriteString(n.Content())
	case math.KindInline:
		if src, ok := math.Source(n); ok {
			b.WriteString(`<span class="math inline">\(` + encoding.EscapeHTML(src) + `\)</span>`)
			return
		}
		b.WriteString(encoding.EscapeHTML(base.Fallback(e.ws, FormatName, n)))
	default:
		b.WriteString(encoding.EscapeHTML(base.Fallback(e.ws, FormatName, n)))
	}
}

func (e *emitter) image(b *strings.Builder, n ir.Node) {
	src := n.Props.StringOr(ir.PropURL, "")
	if ref, ok := n.Props.GetString(ir.PropResource); ok {
		id := ir.ResourceID(ref)
		r, found := e.doc.Resource(id)
		switch {
		case !found:
			e.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.ResourceFailed{ID: id}, "image references a missing resource"))
		case e.export:
			src = e.resourceDir + ir.ExportedResource{ID: id, Name: r.Name, MimeType: r.MimeType}.FileName()
		default:
			src = "data:" + r.MimeType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
		}
	}
	b.WriteString(`<img src="` + encoding.EscapeHTML(src) + `"`)
	if alt, ok := n.Props.GetString(ir.PropAlt); ok {
		b.WriteString(` alt="` + encoding.EscapeHTML(alt) + `"`)
	}
	if t := n.Props.StringOr(ir.PropTitle, ""); t != "" {
		b.WriteString(` title="` + encoding.EscapeHTML(t) + `"`)
	}
	b.WriteString(">")
}

// attrs renders the id and classes of n as HTML attributes.
func attrs(n ir.Node) string {
	var b strings.Builder
	if id := n.Props.StringOr(ir.PropID, ""); id != "" {
		b.WriteString(` id="` + encoding.EscapeHTML(id) + `"`)
	}
	if list, ok := n.Props.GetList(ir.PropClasses); ok && len(list) > 0 {
		classes := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.AsString(); ok {
				classes = append(classes, s)
			}
		}
		b.WriteString(` class="` + encoding.EscapeHTML(strings.Join(classes, " ")) + `"`)
	}
	return b.String()
}
