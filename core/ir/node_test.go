package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNodeBuilderDoesNotAlias(t *testing.T) {
	base := NewNode(KindParagraph).Prop(PropID, String("p1"))
	a := base.Child(Text("a"))
	b := base.Child(Text("b"))

	if len(base.Children) != 0 {
		t.Errorf("base gained children: %d", len(base.Children))
	}
	if a.Children[0].Content() != "a" || b.Children[0].Content() != "b" {
		t.Errorf("siblings share storage: %q %q", a.Children[0].Content(), b.Children[0].Content())
	}

	c := base.Prop(PropID, String("p2"))
	if id, _ := base.Props.GetString(PropID); id != "p1" {
		t.Errorf("base id = %q, want p1", id)
	}
	if id, _ := c.Props.GetString(PropID); id != "p2" {
		t.Errorf("copy id = %q, want p2", id)
	}
}

func TestNodeChildOrderPreserved(t *testing.T) {
	n := NewNode(KindParagraph).WithChildren(Text("1"), Text("2")).Child(Text("3"))

	var got []string
	for _, c := range n.Children {
		got = append(got, c.Content())
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, got); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeCloneDeep(t *testing.T) {
	orig := NewNode(KindList).Child(NewNode(KindListItem).Child(Text("x"))).WithSpan(0, 4)
	c := orig.Clone()

	if diff := cmp.Diff(orig, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Children[0].Children[0].Props.Set(PropContent, String("changed"))
	c.Span.End = 99
	if orig.Children[0].Children[0].Content() != "x" {
		t.Error("clone shares grandchild properties")
	}
	if orig.Span.End != 4 {
		t.Error("clone shares span")
	}
}

func TestKindNamespace(t *testing.T) {
	tests := []struct {
		kind  Kind
		ns    string
		local string
	}{
		{"math:fraction", "math", "fraction"},
		{KindParagraph, "", "paragraph"},
		{":odd", "", ":odd"},
	}

	for _, tt := range tests {
		if got := tt.kind.Namespace(); got != tt.ns {
			t.Errorf("%q.Namespace() = %q, want %q", tt.kind, got, tt.ns)
		}
		if got := tt.kind.Local(); got != tt.local {
			t.Errorf("%q.Local() = %q, want %q", tt.kind, got, tt.local)
		}
	}

	if !KindStrong.IsInline() || KindTable.IsInline() {
		t.Error("IsInline() misclassifies standard kinds")
	}
	if Kind("math:fraction").IsStandard() {
		t.Error("namespaced kind reported as standard")
	}
}

func TestTextContent(t *testing.T) {
	tree := NewNode(KindParagraph).WithChildren(
		Text("Hello "),
		NewNode(KindStrong).Child(Text("bold")),
		NewNode(KindLineBreak),
		NewNode("math:fraction").WithChildren(
			NewNode("math:num").Prop("math:source", String("1")),
			NewNode("math:den").Prop("math:source", String("2")),
		),
	)

	if got := TextContent(tree); got != "Hello bold 12" {
		t.Errorf("TextContent() = %q", got)
	}
}

func TestWalkAndMap(t *testing.T) {
	tree := NewNode(KindDocument).WithChildren(
		NewNode(KindHeading).Prop(PropLevel, Int(1)).Child(Text("T")),
		NewNode(KindParagraph).Child(Text("p")),
	)

	if got := Count(tree); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
	if got := Depth(tree); got != 3 {
		t.Errorf("Depth() = %d, want 3", got)
	}
	if !Contains(tree, KindText) || Contains(tree, KindTable) {
		t.Error("Contains() wrong")
	}

	var kinds []Kind
	Walk(tree, func(n Node) bool {
		kinds = append(kinds, n.Kind)
		return n.Kind != KindHeading
	})
	want := []Kind{KindDocument, KindHeading, KindParagraph, KindText}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Walk order mismatch (-want +got):\n%s", diff)
	}

	upper := MapNodes(tree, func(n Node) Node {
		if n.Kind == KindText {
			return Text(n.Content() + "!")
		}
		return n
	})
	if got := TextContent(upper); got != "T!p!" {
		t.Errorf("MapNodes() text = %q, want T!p!", got)
	}
	if got := TextContent(tree); got != "Tp" {
		t.Errorf("MapNodes() modified its input: %q", got)
	}
}
