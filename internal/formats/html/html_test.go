package html

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

func parse(t *testing.T, input string, opts plugins.ParseOptions) *ir.ConversionResult[*ir.Document] {
	t.Helper()
	res, err := (&Handler{}).Parse([]byte(input), opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return res
}

func emit(t *testing.T, doc *ir.Document, extra map[string]string) *ir.ConversionResult[[]byte] {
	t.Helper()
	res, err := (&Handler{}).Emit(doc, plugins.EmitOptions{Extra: extra})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return res
}

func shape(n ir.Node) string {
	if n.Kind == ir.KindText {
		return "'" + n.Content() + "'"
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		parts = append(parts, shape(c))
	}
	return string(n.Kind) + "(" + strings.Join(parts, " ") + ")"
}

func TestManifest(t *testing.T) {
	m := Manifest()
	if !m.CanRead() || !m.CanWrite() {
		t.Error("html should read and write")
	}
	if !m.Sniff([]byte("<!DOCTYPE html>\n<HTML lang=en>")) {
		t.Error("Sniff() rejected an HTML page")
	}
	if m.Sniff([]byte("just text")) {
		t.Error("Sniff() accepted plain text")
	}
}

func TestParseDocument(t *testing.T) {
	input := `<!DOCTYPE html>
<html lang="EN-us"><head><title> My  Doc </title><meta name="author" content="Ann"></head>
<body>
<h1 id="top">Hello <em>world</em></h1>
<p>Some <strong>bold</strong> and <a href="http://x" title="t">link</a>.</p>
<ul><li>one</li><li>two<ul><li>three</li></ul></li></ul>
<pre><code class="language-go">fmt.Println()
</code></pre>
<script>alert(1)</script>
</body></html>`
	res := parse(t, input, plugins.ParseOptions{PreserveSourceInfo: true})
	doc := res.Value

	meta := map[string]string{}
	for _, k := range doc.Metadata.Keys() {
		meta[k] = doc.Metadata.StringOr(k, "")
	}
	wantMeta := map[string]string{ir.MetaTitle: "My Doc", ir.MetaLanguage: "en-US", ir.MetaAuthor: "Ann"}
	if diff := cmp.Diff(wantMeta, meta); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	want := "document(" +
		"heading('Hello ' emphasis('world')) " +
		"paragraph('Some ' strong('bold') ' and ' link('link') '.') " +
		"list(list_item('one') list_item(paragraph('two') list(list_item('three')))) " +
		"code_block())"
	if diff := cmp.Diff(want, shape(doc.Content)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	h := doc.Content.Children[0]
	if h.Props.IntOr(ir.PropLevel, 0) != 1 || h.Props.StringOr(ir.PropID, "") != "top" {
		t.Errorf("heading props = %v", h.Props)
	}
	code := doc.Content.Children[3]
	if code.Content() != "fmt.Println()" || code.Props.StringOr(ir.PropLanguage, "") != "go" {
		t.Errorf("code block = %q (%s)", code.Content(), code.Props.StringOr(ir.PropLanguage, ""))
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind.Subject() != "<script>" {
		t.Errorf("warnings = %v, want one for <script>", res.Warnings)
	}
	if !doc.Source.Metadata.BoolOr(SourceDoctype, false) || doc.Source.Metadata.BoolOr(SourceFragment, true) {
		t.Errorf("source metadata = %v", doc.Source.Metadata)
	}
}

func TestParseTable(t *testing.T) {
	res := parse(t, `<table><thead><tr><th>a</th><th>b</th></tr></thead>
<tbody><tr><td colspan="2">c</td></tr></tbody></table>`, plugins.ParseOptions{})

	table := res.Value.Content.Children[0]
	rows := base.TableRows(table)
	want := []base.Row{
		{Cells: []string{"a", "b"}, Header: true},
		{Cells: []string{"c"}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	cell := table.Children[1].Children[0].Children[0]
	if cell.Props.IntOr(ir.PropColspan, 1) != 2 {
		t.Errorf("colspan = %d, want 2", cell.Props.IntOr(ir.PropColspan, 1))
	}
}

func TestParseDataURI(t *testing.T) {
	input := `<p><img src="data:image/png;base64,aGVsbG8=" alt="x"></p>`

	res := parse(t, input, plugins.ParseOptions{EmbedResources: true})
	doc := res.Value
	img := doc.Content.Children[0].Children[0]
	ref, ok := img.Props.GetString(ir.PropResource)
	if !ok {
		t.Fatalf("image has no resource: %v", img.Props)
	}
	r, ok := doc.Resource(ir.ResourceID(ref))
	if !ok || r.MimeType != "image/png" || string(r.Data) != "hello" {
		t.Errorf("resource = %+v, %v", r, ok)
	}

	res = parse(t, input, plugins.ParseOptions{})
	img = res.Value.Content.Children[0].Children[0]
	if len(res.Value.Resources) != 0 || !strings.HasPrefix(img.Props.StringOr(ir.PropURL, ""), "data:") {
		t.Errorf("data URI embedded without EmbedResources: %v", img.Props)
	}

	res = parse(t, `<img src="data:image/png;base64,!!!">`, plugins.ParseOptions{EmbedResources: true})
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one for the bad payload", res.Warnings)
	}
}

func TestDecodeDataURI(t *testing.T) {
	mime, data, err := decodeDataURI("data:,a%20b")
	if err != nil || mime != "text/plain" || string(data) != "a b" {
		t.Errorf("decodeDataURI() = %q, %q, %v", mime, data, err)
	}
	if _, _, err := decodeDataURI("data:image/png;base64"); err == nil {
		t.Error("missing payload accepted")
	}
}

func TestParseUnknownElement(t *testing.T) {
	res := parse(t, "<p>a <blink>b</blink></p>", plugins.ParseOptions{})
	if got := ir.TextContent(res.Value.Content); got != "a b" {
		t.Errorf("text = %q", got)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Severity != ir.SeverityInfo {
		t.Errorf("warnings = %v, want one info", res.Warnings)
	}
}

func TestParseDepthCap(t *testing.T) {
	input := strings.Repeat("<div>", MaxDepth+50) + "deep" + strings.Repeat("</div>", MaxDepth+50)
	res := parse(t, input, plugins.ParseOptions{})
	if got := ir.TextContent(res.Value.Content); got != "deep" {
		t.Errorf("text = %q", got)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind.Subject() != "nesting" {
		t.Errorf("warnings = %v, want one nesting warning", res.Warnings)
	}
	if ir.Depth(res.Value.Content) > MaxDepth+3 {
		t.Errorf("depth = %d", ir.Depth(res.Value.Content))
	}
}

func TestParseUnknownCharset(t *testing.T) {
	_, err := (&Handler{}).Parse([]byte("<p>x</p>"), plugins.ParseOptions{Extra: map[string]string{"charset": "klingon"}})
	if !errors.Is(err, apperrors.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestEmitFragment(t *testing.T) {
	doc := ir.NewDocument()
	doc.Content = doc.Content.Child(ir.NewNode(ir.KindParagraph).WithChildren(
		ir.Text("a < b "),
		math.Inline("latex", "x"),
	))
	res := emit(t, doc, map[string]string{"fragment": "true"})
	want := "<p>a &lt; b <span class=\"math inline\">\\(x\\)</span></p>\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitPage(t *testing.T) {
	doc := ir.NewDocument()
	doc.Metadata.Set(ir.MetaTitle, ir.String("T"))
	doc.Metadata.Set(ir.MetaLanguage, ir.String("en"))
	doc.Content = doc.Content.Child(ir.NewNode(ir.KindHorizontalRule))

	got := string(emit(t, doc, nil).Value)
	want := "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>T</title>\n</head>\n<body>\n<hr>\n</body>\n</html>\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitResources(t *testing.T) {
	doc := ir.NewDocument()
	id := doc.Embed(ir.NewResource("image/png", []byte("hello")).WithName("a.png"))
	doc.Content = doc.Content.Child(ir.NewNode(ir.KindParagraph).Child(
		ir.NewNode(ir.KindImage).Prop(ir.PropResource, ir.String(string(id))),
	))

	inline := string(emit(t, doc, map[string]string{"fragment": "true"}).Value)
	if inline != "<p><img src=\"data:image/png;base64,aGVsbG8=\"></p>\n" {
		t.Errorf("inline output = %q", inline)
	}
	if got := (&Handler{}).ExportResources(doc, plugins.EmitOptions{}); len(got) != 0 {
		t.Errorf("exported %d resources without resource_dir", len(got))
	}

	opts := map[string]string{"fragment": "true", "resource_dir": "img/"}
	linked := string(emit(t, doc, opts).Value)
	if linked != "<p><img src=\"img/a.png\"></p>\n" {
		t.Errorf("linked output = %q", linked)
	}
	if got := (&Handler{}).ExportResources(doc, plugins.EmitOptions{Extra: opts}); len(got) != 1 {
		t.Errorf("exported %d resources, want 1", len(got))
	}
}

func TestRoundTrip(t *testing.T) {
	text := ir.Text
	cell := func(kind ir.Kind, s string) ir.Node { return ir.NewNode(kind).Child(text(s)) }
	doc := ir.NewDocument()
	doc.Metadata.Set(ir.MetaTitle, ir.String("Round"))
	doc.Content = doc.Content.WithChildren(
		ir.NewNode(ir.KindHeading).Prop(ir.PropLevel, ir.Int(2)).Child(text("Title")),
		ir.NewNode(ir.KindParagraph).WithChildren(
			text("a "),
			ir.NewNode(ir.KindStrong).Child(text("b")),
			text(" "),
			ir.NewNode(ir.KindEmphasis).Child(text("c")),
			text(" "),
			ir.NewNode(ir.KindLink).Prop(ir.PropURL, ir.String("u")).Child(text("d")),
			text(" "),
			ir.NewNode(ir.KindCode).Prop(ir.PropContent, ir.String("e")),
			ir.NewNode(ir.KindFootnoteRef).Prop(ir.PropLabel, ir.String("1")),
		),
		ir.NewNode(ir.KindList).Prop(ir.PropOrdered, ir.Bool(true)).Prop(ir.PropStart, ir.Int(3)).WithChildren(
			ir.NewNode(ir.KindListItem).Child(text("x")),
			ir.NewNode(ir.KindListItem).Child(text("y")),
		),
		ir.NewNode(ir.KindTable).WithChildren(
			ir.NewNode(ir.KindTableHead).Child(ir.NewNode(ir.KindTableRow).WithChildren(
				cell(ir.KindTableHeader, "h1"), cell(ir.KindTableHeader, "h2"))),
			ir.NewNode(ir.KindTableBody).Child(ir.NewNode(ir.KindTableRow).WithChildren(
				cell(ir.KindTableCell, "1"), cell(ir.KindTableCell, "2"))),
		),
		ir.NewNode(ir.KindBlockquote).Child(ir.NewNode(ir.KindParagraph).Child(text("q"))),
		ir.NewNode(ir.KindFootnoteDef).Prop(ir.PropLabel, ir.String("1")).
			Child(ir.NewNode(ir.KindParagraph).Child(text("note"))),
		math.Display("latex", "x^2"),
		ir.NewNode(ir.KindHorizontalRule),
	)

	out := emit(t, doc, nil)
	if out.HasWarnings() {
		t.Errorf("emit warnings: %v", out.Warnings)
	}
	back := parse(t, string(out.Value), plugins.ParseOptions{})
	if back.HasWarnings() {
		t.Errorf("parse warnings: %v", back.Warnings)
	}
	if diff := cmp.Diff(shape(doc.Content), shape(back.Value.Content)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if back.Value.Title() != "Round" {
		t.Errorf("title = %q", back.Value.Title())
	}
	list := back.Value.Content.Children[2]
	if list.Props.IntOr(ir.PropStart, 1) != 3 {
		t.Errorf("list start = %d", list.Props.IntOr(ir.PropStart, 1))
	}
	if src, _ := math.Source(back.Value.Content.Children[6]); src != "x^2" {
		t.Errorf("math source = %q", src)
	}
	if ref := back.Value.Content.Children[1].Children[8]; ref.Props.StringOr(ir.PropLabel, "") != "1" {
		t.Errorf("footnote ref = %v", ref.Props)
	}
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{"", "<p>a</p>", "<table><tr><td>", "<img src=data:,x>", "<ol start=x><li>"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		res, err := (&Handler{}).Parse([]byte(input), plugins.ParseOptions{EmbedResources: true})
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if _, err := (&Handler{}).Emit(res.Value, plugins.EmitOptions{}); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	})
}
