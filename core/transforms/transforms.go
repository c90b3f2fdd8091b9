// Package transforms provides document-to-document rewrites that run
// between a reader and a writer.
//
// Every transform works on a copy of its input and returns the copy only on
// success, so a failing transform never leaves a document half rewritten.
package transforms

import (
	"fmt"
	"strings"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

// ShiftHeadings adds Delta to every heading level, clamping the result to
// [Min, Max]. Zero Min and Max mean 1 and 6.
type ShiftHeadings struct {
	Delta int64
	Min   int64
	Max   int64
}

// NewShiftHeadings returns a ShiftHeadings clamped to levels 1..6.
func NewShiftHeadings(delta int64) *ShiftHeadings {
	return &ShiftHeadings{Delta: delta, Min: 1, Max: 6}
}

// Name implements plugins.Transformer.
func (t *ShiftHeadings) Name() string { return "shift_headings" }

func (t *ShiftHeadings) bounds() (int64, int64) {
	lo, hi := t.Min, t.Max
	if lo == 0 {
		lo = 1
	}
	if hi == 0 {
		hi = 6
	}
	return lo, hi
}

// Transform implements plugins.Transformer.
func (t *ShiftHeadings) Transform(doc *ir.Document) (*ir.Document, error) {
	lo, hi := t.bounds()
	if lo < 1 || lo > hi {
		return nil, apperrors.NewTransform(t.Name(), fmt.Sprintf("invalid level range %d..%d", lo, hi))
	}
	out := doc.Clone()
	ir.WalkMut(&out.Content, func(n *ir.Node) {
		if n.Kind != ir.KindHeading {
			return
		}
		level, ok := n.Props.GetInt(ir.PropLevel)
		if !ok {
			return
		}
		n.Props.Set(ir.PropLevel, ir.Int(min(max(level+t.Delta, lo), hi)))
	})
	return out, nil
}

// StripEmpty removes whitespace-only text nodes and childless paragraphs,
// spans and divs. Containers emptied by the removal are removed as well.
type StripEmpty struct{}

// Name implements plugins.Transformer.
func (StripEmpty) Name() string { return "strip_empty" }

// Transform implements plugins.Transformer.
func (StripEmpty) Transform(doc *ir.Document) (*ir.Document, error) {
	out := doc.Clone()
	out.Content = stripEmpty(out.Content)
	return out, nil
}

func isEmptyNode(n ir.Node) bool {
	switch n.Kind {
	case ir.KindText:
		s, ok := n.Props.GetString(ir.PropContent)
		return !ok || strings.TrimSpace(s) == ""
	case ir.KindParagraph, ir.KindSpan, ir.KindDiv:
		return len(n.Children) == 0
	}
	return false
}

func stripEmpty(n ir.Node) ir.Node {
	if len(n.Children) == 0 {
		return n
	}
	kept := make([]ir.Node, 0, len(n.Children))
	for _, c := range n.Children {
		c = stripEmpty(c)
		if !isEmptyNode(c) {
			kept = append(kept, c)
		}
	}
	n.Children = kept
	return n
}

// MergeText joins adjacent text siblings into one text node.
type MergeText struct{}

// Name implements plugins.Transformer.
func (MergeText) Name() string { return "merge_text" }

// Transform implements plugins.Transformer.
func (MergeText) Transform(doc *ir.Document) (*ir.Document, error) {
	out := doc.Clone()
	out.Content = ir.MapNodes(out.Content, mergeChildren)
	return out, nil
}

func mergeChildren(n ir.Node) ir.Node {
	if len(n.Children) < 2 {
		return n
	}
	merged := make([]ir.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind == ir.KindText && len(merged) > 0 && merged[len(merged)-1].Kind == ir.KindText {
			last := &merged[len(merged)-1]
			last.Props.Set(ir.PropContent, ir.String(last.Content()+c.Content()))
			continue
		}
		merged = append(merged, c)
	}
	n.Children = merged
	return n
}

// UnwrapSingleChild replaces a div or span that has exactly one child, no
// properties and no span with that child.
type UnwrapSingleChild struct{}

// Name implements plugins.Transformer.
func (UnwrapSingleChild) Name() string { return "unwrap_single_child" }

// Transform implements plugins.Transformer.
func (UnwrapSingleChild) Transform(doc *ir.Document) (*ir.Document, error) {
	out := doc.Clone()
	out.Content = ir.MapNodes(out.Content, func(n ir.Node) ir.Node {
		if (n.Kind == ir.KindDiv || n.Kind == ir.KindSpan) &&
			len(n.Children) == 1 && n.Props.Len() == 0 && n.Span == nil {
			return n.Children[0]
		}
		return n
	})
	return out, nil
}

// Pipeline applies transforms in order, stopping at the first failure.
type Pipeline struct {
	steps []plugins.Transformer
}

// NewPipeline returns a pipeline running steps in order.
func NewPipeline(steps ...plugins.Transformer) *Pipeline {
	return &Pipeline{steps: steps}
}

// Then appends a step and returns p.
func (p *Pipeline) Then(t plugins.Transformer) *Pipeline {
	p.steps = append(p.steps, t)
	return p
}

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }

// Name implements plugins.Transformer.
func (p *Pipeline) Name() string { return "pipeline" }

// Transform implements plugins.Transformer. The input document is returned
// untouched when any step fails.
func (p *Pipeline) Transform(doc *ir.Document) (*ir.Document, error) {
	cur := doc
	for _, step := range p.steps {
		next, err := step.Transform(cur)
		if err != nil {
			var te *apperrors.TransformError
			if apperrors.As(err, &te) {
				return nil, err
			}
			return nil, &apperrors.TransformError{Transform: step.Name(), Reason: "step failed", Err: err}
		}
		cur = next
	}
	return cur, nil
}
