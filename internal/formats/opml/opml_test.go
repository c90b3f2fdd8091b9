package opml

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

const sample = `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>Example</title><ownerName>Ann</ownerName></head>
  <body>
    <outline text="Item 1" _note="A note"/>
    <outline text="Item 2" type="link" url="http://x">
      <outline text="Child"/>
    </outline>
  </body>
</opml>`

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

func parse(t *testing.T, input string) *ir.ConversionResult[*ir.Document] {
	t.Helper()
	res, err := (&Handler{}).Parse([]byte(input), plugins.ParseOptions{PreserveSourceInfo: true})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return res
}

func emit(t *testing.T, doc *ir.Document) *ir.ConversionResult[[]byte] {
	t.Helper()
	res, err := (&Handler{}).Emit(doc, plugins.EmitOptions{})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return res
}

// body drops the XML declaration line.
func body(out []byte) string {
	_, rest, _ := strings.Cut(string(out), "\n")
	return rest
}

func TestParse(t *testing.T) {
	res := parse(t, sample)
	doc := res.Value

	want := "document(list(" +
		"list_item(paragraph('Item 1') paragraph('A note')) " +
		"list_item(paragraph(link('Item 2')) list(list_item(paragraph('Child'))))))"
	if diff := cmp.Diff(want, shape(doc.Content)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if doc.Title() != "Example" || doc.Metadata.StringOr(ir.MetaAuthor, "") != "Ann" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
	item := doc.Content.Children[0].Children[1]
	if item.Props.StringOr(AttrPrefix+"type", "") != "link" {
		t.Errorf("item props = %v", item.Props)
	}
	if v := doc.Source.Metadata.StringOr(SourceVersion, ""); v != "2.0" {
		t.Errorf("version = %q", v)
	}
	if res.HasWarnings() {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestParseTitleFallback(t *testing.T) {
	res := parse(t, `<opml><body><outline title="Only title"/></body></opml>`)
	if got := ir.TextContent(res.Value.Content); got != "Only title" {
		t.Errorf("text = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"not xml <", "<rss><channel/></rss>"} {
		_, err := (&Handler{}).Parse([]byte(input), plugins.ParseOptions{})
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidInput", input, err)
		}
	}

	res := parse(t, `<opml version="1.0"><head/></opml>`)
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one for the missing body", res.Warnings)
	}
}

func TestParseDepthCap(t *testing.T) {
	input := "<opml><body>" +
		strings.Repeat(`<outline text="x">`, maxDepth+10) +
		strings.Repeat("</outline>", maxDepth+10) +
		"</body></opml>"
	res := parse(t, input)
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one nesting warning", res.Warnings)
	}
	if got := strings.Count(ir.TextContent(res.Value.Content), "x"); got != maxDepth+10 {
		t.Errorf("kept %d of %d outline texts", got, maxDepth+10)
	}
}

func TestEmitHeadingsNest(t *testing.T) {
	heading := func(level int64, s string) ir.Node {
		return ir.NewNode(ir.KindHeading).Prop(ir.PropLevel, ir.Int(level)).Child(ir.Text(s))
	}
	item := func(children ...ir.Node) ir.Node { return ir.NewNode(ir.KindListItem).WithChildren(children...) }

	doc := ir.NewDocument()
	doc.Metadata.Set(ir.MetaTitle, ir.String("T"))
	doc.Content = doc.Content.WithChildren(
		heading(1, "Top"),
		ir.NewNode(ir.KindParagraph).Child(ir.Text("intro")),
		heading(2, "Sub"),
		ir.NewNode(ir.KindList).WithChildren(
			item(ir.Text("a")),
			item(ir.NewNode(ir.KindParagraph).Child(ir.Text("b")),
				ir.NewNode(ir.KindList).Child(item(ir.Text("c")))),
		),
		heading(1, "Next"),
	)

	res := emit(t, doc)
	want := `<opml version="2.0">
  <head>
    <title>T</title>
  </head>
  <body>
    <outline text="Top">
      <outline text="intro"/>
      <outline text="Sub">
        <outline text="a"/>
        <outline text="b">
          <outline text="c"/>
        </outline>
      </outline>
    </outline>
    <outline text="Next"/>
  </body>
</opml>
`
	if !strings.HasPrefix(string(res.Value), "<?xml") {
		t.Errorf("missing declaration: %q", res.Value)
	}
	if diff := cmp.Diff(want, body(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if res.HasWarnings() {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestEmitSimplifiesBlocks(t *testing.T) {
	cell := func(s string) ir.Node { return ir.NewNode(ir.KindTableCell).Child(ir.Text(s)) }
	doc := ir.NewDocument()
	doc.Content = doc.Content.WithChildren(
		ir.NewNode(ir.KindTable).Child(ir.NewNode(ir.KindTableRow).WithChildren(cell("a"), cell("b"))),
		ir.NewNode(ir.KindCodeBlock).Prop(ir.PropContent, ir.String("x := 1")),
		ir.NewNode(ir.KindParagraph).WithChildren(ir.NewNode(ir.KindStrong).Child(ir.Text("bold\x01"))),
	)
	res := emit(t, doc)
	out := string(res.Value)
	for _, want := range []string{`text="a | b"`, `text="x := 1"`, `text="bold"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
	if len(res.Warnings) != 3 {
		t.Errorf("warnings = %v, want table, code and formatting", res.Warnings)
	}
}

func TestRoundTrip(t *testing.T) {
	first := parse(t, sample)
	out := emit(t, first.Value)
	if out.HasWarnings() {
		t.Errorf("emit warnings: %v", out.Warnings)
	}
	second := parse(t, string(out.Value))

	if diff := cmp.Diff(shape(first.Value.Content), shape(second.Value.Content)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	a := first.Value.Content.Children[0].Children[1].Props
	b := second.Value.Content.Children[0].Children[1].Props
	if !a.Equal(b) {
		t.Errorf("item props changed: %v -> %v", a, b)
	}
	if second.Value.Title() != "Example" {
		t.Errorf("title = %q", second.Value.Title())
	}
}

func TestSniff(t *testing.T) {
	if !Manifest().Sniff([]byte(sample)) {
		t.Error("Sniff() rejected OPML")
	}
	if Manifest().Sniff([]byte("<rss/>")) {
		t.Error("Sniff() accepted RSS")
	}
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{sample, "<opml/>", "<opml><body><outline/></body></opml>", "<"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		res, err := (&Handler{}).Parse([]byte(input), plugins.ParseOptions{})
		if err != nil {
			return
		}
		if _, err := (&Handler{}).Emit(res.Value, plugins.EmitOptions{}); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	})
}
