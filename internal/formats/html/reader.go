package html

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// Parse implements plugins.Reader.
//
// Options: "charset" names the input encoding. Images given as data: URIs
// are embedded as resources when ParseOptions.EmbedResources is set.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	var ws ir.Warnings
	text, replaced, err := base.DecodeText(FormatName, input, opts.Option("charset", ""))
	if err != nil {
		return nil, err
	}
	if replaced {
		ws.Lost(ir.SeverityMinor, "encoding", "invalid UTF-8 sequences replaced")
	}

	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		pe := apperrors.NewParse(apperrors.ParseInvalid, FormatName, "malformed HTML")
		pe.Err = err
		return nil, pe
	}

	doc := opts.NewDocument(FormatName)
	r := &reader{ws: &ws, doc: doc, embed: opts.EmbedResources}
	r.head(root)
	body := findElement(root, "body")
	if body == nil {
		body = root
	}
	doc.Content = doc.Content.WithChildren(r.blocks(body, 0)...)

	if opts.PreserveSourceInfo {
		doctype := false
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			doctype = doctype || c.Type == html.DoctypeNode
		}
		doc.Source.Metadata.Set(SourceDoctype, ir.Bool(doctype))
		doc.Source.Metadata.Set(SourceFragment, ir.Bool(!strings.Contains(strings.ToLower(text), "<html")))
	}
	return ir.WithWarnings(doc, ws.List()), nil
}

type reader struct {
	ws    *ir.Warnings
	doc   *ir.Document
	embed bool
}

// head copies the title, document language and named meta tags into the
// document metadata.
func (r *reader) head(root *html.Node) {
	if el := findElement(root, "html"); el != nil {
		if lang := attr(el, "lang"); lang != "" {
			r.doc.Metadata.Set(ir.MetaLanguage, ir.String(r.language(lang)))
		}
	}
	head := findElement(root, "head")
	if head == nil {
		return
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "title":
			if t := base.CollapseSpace(textOf(c)); t != "" {
				r.doc.Metadata.Set(ir.MetaTitle, ir.String(t))
			}
		case "meta":
			name := attr(c, "name")
			if name == "" {
				name = attr(c, "property")
			}
			content := attr(c, "content")
			if name != "" && content != "" {
				r.doc.Metadata.Set(strings.ToLower(name), ir.String(content))
			}
		}
	}
}

// language canonicalizes a BCP 47 tag, keeping unparseable tags verbatim.
func (r *reader) language(s string) string {
	tag, err := language.Parse(s)
	if err != nil {
		r.ws.Lost(ir.SeverityInfo, "language", fmt.Sprintf("unrecognized language tag %q kept verbatim", s))
		return s
	}
	return tag.String()
}

func (r *reader) children(n *html.Node, depth int) []ir.Node {
	var out []ir.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, r.node(c, depth+1)...)
	}
	return out
}

// blocks converts the children of n into block content.
func (r *reader) blocks(n *html.Node, depth int) []ir.Node {
	return group(r.children(n, depth))
}

// inlines converts the children of n into trimmed inline content.
func (r *reader) inlines(n *html.Node, depth int) []ir.Node {
	return trimInlines(r.children(n, depth))
}

// flow keeps purely inline content inline and groups mixed content into
// blocks. Cells, list items and descriptions use it.
func (r *reader) flow(n *html.Node, depth int) []ir.Node {
	nodes := r.children(n, depth)
	for _, c := range nodes {
		if !base.IsInline(c.Kind) {
			return group(nodes)
		}
	}
	return trimInlines(nodes)
}

func (r *reader) node(n *html.Node, depth int) []ir.Node {
	switch n.Type {
	case html.TextNode:
		if s := collapse(n.Data); s != "" {
			return []ir.Node{ir.Text(s)}
		}
		return nil
	case html.ElementNode:
	default:
		return nil
	}
	if depth > MaxDepth {
		r.ws.Once("depth", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "nesting"},
			fmt.Sprintf("elements nested deeper than %d flattened to text", MaxDepth)))
		if s := collapse(textOf(n)); s != "" {
			return []ir.Node{ir.Text(s)}
		}
		return nil
	}
	if node, ok := r.element(n, depth); ok {
		return []ir.Node{node}
	}

	switch n.Data {
	case "script", "style", "noscript", "template", "iframe", "object", "embed", "svg", "math", "canvas", "video", "audio":
		r.ws.Once("element "+n.Data, ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "<" + n.Data + ">"},
			fmt.Sprintf("<%s> content dropped", n.Data)))
		return nil
	case "head", "title", "meta", "link", "base", "colgroup", "col", "source", "track", "wbr":
		return nil
	case "small", "mark", "abbr", "time", "var", "dfn", "bdi", "bdo", "label", "nobr", "data", "big",
		"center", "body", "html", "form", "fieldset", "details", "summary", "picture", "hgroup":
	default:
		r.ws.Once("element "+n.Data, ir.NewWarning(ir.SeverityInfo, ir.Simplified{Feature: "<" + n.Data + ">"},
			fmt.Sprintf("<%s> unwrapped", n.Data)))
	}
	return r.children(n, depth)
}

// element maps elements with a node-kind counterpart.
func (r *reader) element(n *html.Node, depth int) (ir.Node, bool) {
	wrap := func(kind ir.Kind, children []ir.Node) ir.Node {
		return withAttrs(ir.NewNode(kind).WithChildren(children...), n)
	}
	switch n.Data {
	case "p":
		return wrap(ir.KindParagraph, r.inlines(n, depth)), true
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return wrap(ir.KindHeading, r.inlines(n, depth)).Prop(ir.PropLevel, ir.Int(int64(n.Data[1]-'0'))), true
	case "pre":
		return r.pre(n), true
	case "blockquote":
		return ir.NewNode(ir.KindBlockquote).WithChildren(r.blocks(n, depth)...), true
	case "ul", "ol", "menu":
		return r.list(n, depth), true
	case "li":
		return wrap(ir.KindDiv, r.blocks(n, depth)), true
	case "table":
		return r.table(n, depth), true
	case "hr":
		return ir.NewNode(ir.KindHorizontalRule), true
	case "div", "section", "article", "main", "header", "footer", "nav", "aside", "address":
		if m, ok := mathNode(n); ok {
			return m, true
		}
		if id := attr(n, "id"); hasClass(n, "footnote") && strings.HasPrefix(id, "fn-") {
			return ir.NewNode(ir.KindFootnoteDef).Prop(ir.PropLabel, ir.String(strings.TrimPrefix(id, "fn-"))).
				WithChildren(r.blocks(n, depth)...), true
		}
		return wrap(ir.KindDiv, r.blocks(n, depth)), true
	case "figure":
		return wrap(ir.KindFigure, r.blocks(n, depth)), true
	case "figcaption":
		return ir.NewNode(ir.KindCaption).WithChildren(r.inlines(n, depth)...), true
	case "dl":
		return ir.NewNode(ir.KindDefinitionList).WithChildren(r.blocks(n, depth)...), true
	case "dt":
		return ir.NewNode(ir.KindDefinitionTerm).WithChildren(r.inlines(n, depth)...), true
	case "dd":
		return ir.NewNode(ir.KindDefinitionDesc).WithChildren(r.flow(n, depth)...), true

	case "em", "i":
		return ir.NewNode(ir.KindEmphasis).WithChildren(r.children(n, depth)...), true
	case "strong", "b":
		return ir.NewNode(ir.KindStrong).WithChildren(r.children(n, depth)...), true
	case "u", "ins":
		return ir.NewNode(ir.KindUnderline).WithChildren(r.children(n, depth)...), true
	case "s", "del", "strike":
		return ir.NewNode(ir.KindStrikeout).WithChildren(r.children(n, depth)...), true
	case "sub":
		return ir.NewNode(ir.KindSubscript).WithChildren(r.children(n, depth)...), true
	case "sup":
		if hasClass(n, "footnote-ref") {
			return ir.NewNode(ir.KindFootnoteRef).Prop(ir.PropLabel, ir.String(strings.TrimSpace(textOf(n)))), true
		}
		return ir.NewNode(ir.KindSuperscript).WithChildren(r.children(n, depth)...), true
	case "code", "kbd", "samp", "tt":
		return ir.NewNode(ir.KindCode).Prop(ir.PropContent, ir.String(textOf(n))), true
	case "q":
		return ir.NewNode(ir.KindQuoted).WithChildren(r.children(n, depth)...), true
	case "cite":
		return ir.NewNode(ir.KindCite).WithChildren(r.children(n, depth)...), true
	case "a":
		href, ok := attrOK(n, "href")
		if !ok {
			return wrap(ir.KindSpan, r.children(n, depth)), true
		}
		link := ir.NewNode(ir.KindLink).Prop(ir.PropURL, ir.String(href)).WithChildren(r.children(n, depth)...)
		if t := attr(n, "title"); t != "" {
			link = link.Prop(ir.PropTitle, ir.String(t))
		}
		return link, true
	case "img":
		return r.image(n), true
	case "br":
		return ir.NewNode(ir.KindLineBreak), true
	case "span", "font":
		if m, ok := mathNode(n); ok {
			return m, true
		}
		style := parseStyle(attr(n, "style"))
		kind := ir.KindSpan
		if style["font-variant"] == "small-caps" {
			kind = ir.KindSmallCaps
		}
		span := wrap(kind, r.children(n, depth))
		color := style["color"]
		if color == "" && n.Data == "font" {
			color = attr(n, "color")
		}
		if color != "" {
			span = span.Prop(ir.PropStyleColor, ir.String(strings.ToLower(color)))
		}
		return span, true
	}
	return ir.Node{}, false
}

func (r *reader) pre(n *html.Node) ir.Node {
	block := ir.NewNode(ir.KindCodeBlock).Prop(ir.PropContent, ir.String(strings.TrimSuffix(textOf(n), "\n")))
	lang := languageClass(n)
	if code := firstElement(n); lang == "" && code != nil && code.Data == "code" {
		lang = languageClass(code)
	}
	if lang != "" {
		block = block.Prop(ir.PropLanguage, ir.String(lang))
	}
	return block
}

func (r *reader) list(n *html.Node, depth int) ir.Node {
	list := ir.NewNode(ir.KindList)
	if n.Data == "ol" {
		list = list.Prop(ir.PropOrdered, ir.Bool(true))
		if start, err := strconv.ParseInt(attr(n, "start"), 10, 64); err == nil && start != 1 {
			list = list.Prop(ir.PropStart, ir.Int(start))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			list = list.Child(ir.NewNode(ir.KindListItem).WithChildren(r.flow(c, depth+1)...))
			continue
		}
		// Stray content between items becomes an item of its own.
		if stray := group(r.node(c, depth+1)); len(stray) > 0 {
			list = list.Child(ir.NewNode(ir.KindListItem).WithChildren(stray...))
		}
	}
	return list
}

func (r *reader) table(n *html.Node, depth int) ir.Node {
	table := withAttrs(ir.NewNode(ir.KindTable), n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "caption":
			table = table.Child(ir.NewNode(ir.KindCaption).WithChildren(r.inlines(c, depth+1)...))
		case "thead":
			table = table.Child(r.section(ir.KindTableHead, c, depth+1))
		case "tbody":
			table = table.Child(r.section(ir.KindTableBody, c, depth+1))
		case "tfoot":
			table = table.Child(r.section(ir.KindTableFoot, c, depth+1))
		case "tr":
			table = table.Child(r.row(c, depth+1))
		}
	}
	return table
}

func (r *reader) section(kind ir.Kind, n *html.Node, depth int) ir.Node {
	sec := ir.NewNode(kind)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "tr" {
			sec = sec.Child(r.row(c, depth+1))
		}
	}
	return sec
}

func (r *reader) row(n *html.Node, depth int) ir.Node {
	row := ir.NewNode(ir.KindTableRow)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		kind := ir.KindTableCell
		if c.Data == "th" {
			kind = ir.KindTableHeader
		}
		cell := ir.NewNode(kind).WithChildren(r.flow(c, depth+1)...)
		for _, span := range []struct{ attr, prop string }{{"colspan", ir.PropColspan}, {"rowspan", ir.PropRowspan}} {
			if v, err := strconv.ParseInt(attr(c, span.attr), 10, 64); err == nil && v > 1 {
				cell = cell.Prop(span.prop, ir.Int(v))
			}
		}
		if align := attr(c, "align"); align != "" {
			cell = cell.Prop(ir.PropAlign, ir.String(strings.ToLower(align)))
		} else if align := parseStyle(attr(c, "style"))["text-align"]; align != "" {
			cell = cell.Prop(ir.PropAlign, ir.String(align))
		}
		row = row.Child(cell)
	}
	return row
}

func (r *reader) image(n *html.Node) ir.Node {
	img := ir.NewNode(ir.KindImage)
	if alt, ok := attrOK(n, "alt"); ok {
		img = img.Prop(ir.PropAlt, ir.String(alt))
	}
	if t := attr(n, "title"); t != "" {
		img = img.Prop(ir.PropTitle, ir.String(t))
	}
	src := attr(n, "src")
	if strings.HasPrefix(src, "data:") && r.embed {
		mime, data, err := decodeDataURI(src)
		if err != nil {
			r.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "data uri"},
				fmt.Sprintf("undecodable image data dropped: %v", err)))
			return img
		}
		id := r.doc.Embed(ir.NewResource(mime, data))
		return img.Prop(ir.PropResource, ir.String(string(id)))
	}
	if src != "" {
		img = img.Prop(ir.PropURL, ir.String(src))
	}
	return img
}

// mathNode recognizes the "math inline" and "math display" classes used by
// MathJax-style markup.
func mathNode(n *html.Node) (ir.Node, bool) {
	if !hasClass(n, "math") {
		return ir.Node{}, false
	}
	src := strings.TrimSpace(textOf(n))
	if hasClass(n, "display") {
		src = strings.TrimSuffix(strings.TrimPrefix(src, `\[`), `\]`)
		return math.Display("latex", strings.TrimSpace(src)), true
	}
	src = strings.TrimSuffix(strings.TrimPrefix(src, `\(`), `\)`)
	return math.Inline("latex", strings.TrimSpace(src)), true
}

// decodeDataURI decodes an RFC 2397 data: URI into its media type and
// payload.
func decodeDataURI(uri string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload")
	}
	params := strings.Split(header, ";")
	mime := strings.ToLower(strings.TrimSpace(params[0]))
	if mime == "" {
		mime = "text/plain"
	}
	if slices.Contains(params[1:], "base64") {
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(payload), ""))
		if err != nil {
			return "", nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
		return mime, data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding payload: %w", err)
	}
	return mime, []byte(s), nil
}

// group wraps runs of inline nodes in paragraphs. Runs holding nothing but
// whitespace are dropped.
func group(nodes []ir.Node) []ir.Node {
	var out, run []ir.Node
	flush := func() {
		if run = trimInlines(run); len(run) > 0 {
			out = append(out, ir.NewNode(ir.KindParagraph).WithChildren(run...))
		}
		run = nil
	}
	for _, n := range nodes {
		if base.IsInline(n.Kind) {
			run = append(run, n)
			continue
		}
		flush()
		out = append(out, n)
	}
	flush()
	return out
}

// trimInlines strips whitespace at both ends of an inline run.
func trimInlines(nodes []ir.Node) []ir.Node {
	for len(nodes) > 0 && nodes[0].Kind == ir.KindText {
		if s := strings.TrimLeft(nodes[0].Content(), " "); s != "" {
			nodes[0] = ir.Text(s)
			break
		}
		nodes = nodes[1:]
	}
	for len(nodes) > 0 && nodes[len(nodes)-1].Kind == ir.KindText {
		last := len(nodes) - 1
		if s := strings.TrimRight(nodes[last].Content(), " "); s != "" {
			nodes[last] = ir.Text(s)
			break
		}
		nodes = nodes[:last]
	}
	return nodes
}

// collapse folds runs of HTML whitespace into single spaces.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, c := range s {
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(c)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

func withAttrs(node ir.Node, n *html.Node) ir.Node {
	if id := attr(n, "id"); id != "" {
		node = node.Prop(ir.PropID, ir.String(id))
	}
	if classes := strings.Fields(attr(n, "class")); len(classes) > 0 {
		vals := make([]ir.Value, len(classes))
		for i, c := range classes {
			vals[i] = ir.String(c)
		}
		node = node.Prop(ir.PropClasses, ir.List(vals...))
	}
	return node
}

func parseStyle(style string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok {
			out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	return out
}

func languageClass(n *html.Node) string {
	for _, c := range strings.Fields(attr(n, "class")) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}

// textOf concatenates the text below n, skipping script and style content.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
