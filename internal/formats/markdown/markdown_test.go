package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

func newDoc(children ...ir.Node) *ir.Document {
	doc := ir.NewDocument()
	doc.Content = doc.Content.WithChildren(children...)
	return doc
}

func para(children ...ir.Node) ir.Node {
	return ir.NewNode(ir.KindParagraph).WithChildren(children...)
}

func emit(t *testing.T, doc *ir.Document, extra map[string]string) *ir.ConversionResult[[]byte] {
	t.Helper()
	res, err := (&Handler{}).Emit(doc, plugins.EmitOptions{Extra: extra})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return res
}

func TestManifest(t *testing.T) {
	m := Manifest()
	if m.Reader != nil {
		t.Error("markdown should be write-only")
	}
	if f, ok := plugins.Default.ByExtension("README.md"); !ok || f.Name != FormatName {
		t.Errorf("ByExtension(README.md) = %v, %v", f, ok)
	}
}

func TestEmitInlines(t *testing.T) {
	doc := newDoc(
		ir.NewNode(ir.KindHeading).Prop(ir.PropLevel, ir.Int(2)).Child(ir.Text("Title *x*")),
		para(
			ir.Text("a "),
			ir.NewNode(ir.KindStrong).Child(ir.Text("b")),
			ir.Text(" "),
			ir.NewNode(ir.KindEmphasis).Child(ir.Text("c")),
			ir.Text(" "),
			ir.NewNode(ir.KindCode).Prop(ir.PropContent, ir.String("x`y")),
			ir.Text(" "),
			ir.NewNode(ir.KindLink).Prop(ir.PropURL, ir.String("http://e.com")).Child(ir.Text("l")),
			ir.Text(" "),
			math.Inline("latex", "x^2"),
		),
	)
	res := emit(t, doc, nil)

	want := "## Title \\*x\\*\n\na **b** *c* `` x`y `` [l](http://e.com) $x^2$\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if res.HasWarnings() {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestEmitCodeFence(t *testing.T) {
	doc := newDoc(ir.NewNode(ir.KindCodeBlock).
		Prop(ir.PropLanguage, ir.String("go")).
		Prop(ir.PropContent, ir.String("a\n```\nb")))
	res := emit(t, doc, nil)

	want := "````go\na\n```\nb\n````\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitListsAndQuotes(t *testing.T) {
	doc := newDoc(
		ir.NewNode(ir.KindList).WithChildren(
			ir.NewNode(ir.KindListItem).Child(ir.Text("a")),
			ir.NewNode(ir.KindListItem).WithChildren(
				para(ir.Text("b")),
				ir.NewNode(ir.KindList).Prop(ir.PropOrdered, ir.Bool(true)).Prop(ir.PropStart, ir.Int(3)).
					Child(ir.NewNode(ir.KindListItem).Child(ir.Text("c"))),
			),
		),
		ir.NewNode(ir.KindBlockquote).WithChildren(para(ir.Text("q1")), para(ir.Text("q2"))),
		ir.NewNode(ir.KindHorizontalRule),
	)
	res := emit(t, doc, nil)

	want := "- a\n- b\n  3. c\n\n> q1\n>\n> q2\n\n---\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitTable(t *testing.T) {
	hdr := func(s string) ir.Node {
		return ir.NewNode(ir.KindTableCell).Prop(ir.PropHeader, ir.Bool(true)).Child(ir.Text(s))
	}
	cell := func(s string) ir.Node { return ir.NewNode(ir.KindTableCell).Child(ir.Text(s)) }

	doc := newDoc(ir.NewNode(ir.KindTable).WithChildren(
		ir.NewNode(ir.KindTableRow).WithChildren(hdr("h1"), hdr("h2")),
		ir.NewNode(ir.KindTableRow).WithChildren(cell("a|b"), cell("2")),
	))
	res := emit(t, doc, nil)

	want := "| h1 | h2 |\n| --- | --- |\n| a\\|b | 2 |\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if res.HasWarnings() {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	noHeader := newDoc(ir.NewNode(ir.KindTable).WithChildren(
		ir.NewNode(ir.KindTableRow).WithChildren(cell("1"), cell("2")),
		ir.NewNode(ir.KindTableRow).WithChildren(cell("3")),
	))
	res = emit(t, noHeader, nil)
	want = "| 1 | 2 |\n| --- | --- |\n| 3 |  |\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one header warning", res.Warnings)
	}
}

func TestEmitResourceImage(t *testing.T) {
	doc := newDoc()
	id := doc.Embed(ir.NewResource("image/png", []byte("png")).WithName("pics/logo.png"))
	doc.Embed(ir.NewResource("image/gif", []byte("unused")))
	doc.Content = doc.Content.Child(para(
		ir.NewNode(ir.KindImage).Prop(ir.PropResource, ir.String(string(id))).Prop(ir.PropAlt, ir.String("Logo")),
	))

	res := emit(t, doc, map[string]string{"resource_dir": "assets/"})
	if got, want := string(res.Value), "![Logo](assets/logo.png)\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	exported := (&Handler{}).ExportResources(doc, plugins.EmitOptions{})
	if len(exported) != 1 || exported[0].ID != id {
		t.Fatalf("exported = %v, want only %s", exported, id)
	}
	if exported[0].FileName() != "logo.png" {
		t.Errorf("FileName() = %q", exported[0].FileName())
	}
}

func TestEmitMissingResource(t *testing.T) {
	doc := newDoc(para(ir.NewNode(ir.KindImage).Prop(ir.PropResource, ir.String("nope"))))
	res := emit(t, doc, nil)
	if len(res.Warnings) != 1 || res.Warnings[0].Kind.Category() != "resource_failed" {
		t.Errorf("warnings = %v, want one resource_failed", res.Warnings)
	}
}

func TestFrontMatter(t *testing.T) {
	doc := newDoc(para(ir.Text("body")))
	doc.Metadata.Set("title", ir.String("T"))

	res := emit(t, doc, map[string]string{"front_matter": "true"})
	want := "---\ntitle: \"T\"\n---\n\nbody\n"
	if diff := cmp.Diff(want, string(res.Value)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	res = emit(t, doc, nil)
	if string(res.Value) != "body\n" {
		t.Errorf("front matter written without option: %q", res.Value)
	}
}

func TestEmitUnknownKind(t *testing.T) {
	doc := newDoc(ir.NewNode("custom:thing").Child(ir.Text("x")))
	res := emit(t, doc, nil)
	if string(res.Value) != "x\n" {
		t.Errorf("output = %q, want %q", res.Value, "x\n")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", res.Warnings)
	}
}

func TestEmitRawForeign(t *testing.T) {
	doc := newDoc(
		ir.NewNode(ir.KindRawBlock).Prop(ir.PropFormat, ir.String("html")).Prop(ir.PropContent, ir.String("<hr>")),
		ir.NewNode(ir.KindRawBlock).Prop(ir.PropFormat, ir.String("latex")).Prop(ir.PropContent, ir.String("\\newpage")),
	)
	res := emit(t, doc, nil)
	if string(res.Value) != "<hr>\n" {
		t.Errorf("output = %q", res.Value)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", res.Warnings)
	}
}
