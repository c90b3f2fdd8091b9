// Package math defines the "math:" node vocabulary. It extends the IR
// without changing core types: every kind here is an ordinary ir.Kind.
package math

import "github.com/FocuswithJustin/Rescribe/core/ir"

// Container kinds. Inline and display math carry their source text in
// PropSource and the notation in PropFormat.
const (
	KindInline  ir.Kind = "math_inline"
	KindDisplay ir.Kind = "math_display"
)

// Structural kinds.
const (
	KindFraction   ir.Kind = "math:fraction"
	KindRoot       ir.Kind = "math:root"
	KindSub        ir.Kind = "math:sub"
	KindSup        ir.Kind = "math:sup"
	KindSubSup     ir.Kind = "math:subsup"
	KindUnder      ir.Kind = "math:under"
	KindOver       ir.Kind = "math:over"
	KindUnderOver  ir.Kind = "math:underover"
	KindMatrix     ir.Kind = "math:matrix"
	KindMatrixRow  ir.Kind = "math:matrix_row"
	KindMatrixCell ir.Kind = "math:matrix_cell"
	KindFenced     ir.Kind = "math:fenced"
)

// Token kinds.
const (
	KindOperator   ir.Kind = "math:operator"
	KindIdentifier ir.Kind = "math:identifier"
	KindNumber     ir.Kind = "math:number"
	KindText       ir.Kind = "math:text"
	KindSpace      ir.Kind = "math:space"
	KindAccent     ir.Kind = "math:accent"
	KindEnclosed   ir.Kind = "math:enclosed"
)

// Property keys.
const (
	PropFormat    = "math:format"
	PropSource    = "math:source"
	PropRootIndex = "math:root_index"
	PropOpen      = "math:open"
	PropClose     = "math:close"
	PropAccent    = "math:accent_char"
	PropLargeOp   = "math:large_op"
)

// Inline returns an inline math node holding source in the given notation.
func Inline(format, source string) ir.Node {
	return ir.NewNode(KindInline).
		Prop(PropFormat, ir.String(format)).
		Prop(PropSource, ir.String(source))
}

// Display returns a display math node holding source in the given notation.
func Display(format, source string) ir.Node {
	return ir.NewNode(KindDisplay).
		Prop(PropFormat, ir.String(format)).
		Prop(PropSource, ir.String(source))
}

// Token returns a leaf token node of kind with its text in PropSource.
func Token(kind ir.Kind, text string) ir.Node {
	return ir.NewNode(kind).Prop(PropSource, ir.String(text))
}

// Fraction returns a fraction whose children are numerator and denominator.
func Fraction(num, den ir.Node) ir.Node {
	return ir.NewNode(KindFraction).WithChildren(num, den)
}

// Root returns a root of radicand; index may be nil for a square root.
func Root(radicand ir.Node, index *ir.Node) ir.Node {
	n := ir.NewNode(KindRoot).Child(radicand)
	if index != nil {
		n = n.Child(*index)
	}
	return n
}

// IsMath reports whether kind belongs to the math vocabulary.
func IsMath(kind ir.Kind) bool {
	return kind == KindInline || kind == KindDisplay || kind.Namespace() == "math"
}

// Source returns the source text of a math node, if any.
func Source(n ir.Node) (string, bool) {
	return n.Props.GetString(PropSource)
}
