package math

import (
	"testing"

	"github.com/FocuswithJustin/Rescribe/core/ir"
)

func TestInline(t *testing.T) {
	n := Inline("latex", "x^2 + y^2 = z^2")

	if n.Kind != "math_inline" {
		t.Errorf("Kind = %q, want math_inline", n.Kind)
	}
	if got, _ := n.Props.GetString(PropFormat); got != "latex" {
		t.Errorf("format = %q, want latex", got)
	}
	if src, ok := Source(n); !ok || src != "x^2 + y^2 = z^2" {
		t.Errorf("Source() = %q, %v", src, ok)
	}
}

func TestFractionText(t *testing.T) {
	frac := Fraction(Token(KindNumber, "1"), Token(KindIdentifier, "x"))

	if len(frac.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(frac.Children))
	}
	if got := ir.TextContent(frac); got != "1x" {
		t.Errorf("TextContent() = %q, want 1x", got)
	}
}

func TestIsMath(t *testing.T) {
	tests := []struct {
		kind ir.Kind
		want bool
	}{
		{KindInline, true},
		{KindDisplay, true},
		{KindFraction, true},
		{ir.KindParagraph, false},
		{"mathematics", false},
	}

	for _, tt := range tests {
		if got := IsMath(tt.kind); got != tt.want {
			t.Errorf("IsMath(%q) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestRootIndex(t *testing.T) {
	idx := Token(KindNumber, "3")
	r := Root(Token(KindIdentifier, "x"), &idx)
	if len(r.Children) != 2 {
		t.Errorf("children = %d, want 2", len(r.Children))
	}
	if len(Root(Token(KindIdentifier, "x"), nil).Children) != 1 {
		t.Error("square root should have one child")
	}
}
