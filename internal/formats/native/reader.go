package native

import (
	"encoding/base64"
	"fmt"
	"strconv"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// Parse implements plugins.Reader.
//
// Resources are re-embedded under fresh identifiers and node references are
// rewritten to match; option "keep_ids=true" keeps the identifiers found in
// the input instead. The recorded source block replaces Document.Source
// only when ParseOptions.PreserveSourceInfo is set.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	text, replaced, err := base.DecodeText(FormatName, input, opts.Option("charset", ""))
	if err != nil {
		return nil, err
	}
	if d := nesting(text); d > MaxDepth {
		return nil, apperrors.NewParse(apperrors.ParseInvalid, FormatName,
			fmt.Sprintf("nesting depth %d exceeds %d", d, MaxDepth))
	}
	parsed, err := nativeParser.ParseString("", text)
	if err != nil {
		pe := apperrors.NewParse(apperrors.ParseInvalid, FormatName, "syntax error")
		pe.Err = err
		return nil, pe
	}

	var ws ir.Warnings
	if replaced {
		ws.Simplify(ir.SeverityMinor, "encoding", "invalid UTF-8 replaced with U+FFFD")
	}
	r := &reader{ws: &ws}
	doc := opts.NewDocument(FormatName)
	doc.Metadata = r.properties(parsed.Metadata)
	if parsed.Source != nil && opts.PreserveSourceInfo {
		doc.Source = &ir.SourceInfo{Format: parsed.Source.Format, Metadata: r.properties(parsed.Source.Metadata)}
	}

	root := r.node(parsed.Content)
	if root.Kind != ir.KindDocument {
		ws.Simplify(ir.SeverityInfo, "root", fmt.Sprintf("root %q wrapped in a document node", root.Kind))
		root = ir.NewNode(ir.KindDocument).Child(root)
	}

	remap := make(map[ir.ResourceID]ir.ResourceID)
	keep := opts.Option("keep_ids", "false") == "true"
	for _, res := range parsed.Resources {
		id, rs, ok := r.resource(res)
		if !ok {
			continue
		}
		if keep {
			doc.Put(id, rs)
			continue
		}
		remap[id] = doc.Embed(rs)
	}
	if len(remap) > 0 {
		ir.WalkMut(&root, func(n *ir.Node) {
			if ref, ok := n.Props.GetString(ir.PropResource); ok {
				if to, ok := remap[ir.ResourceID(ref)]; ok {
					n.Props.Set(ir.PropResource, ir.String(string(to)))
				}
			}
		})
	}
	doc.Content = root
	return ir.WithWarnings(doc, ws.List()), nil
}

type reader struct {
	ws *ir.Warnings
}

func (r *reader) node(n *node) ir.Node {
	out := ir.NewNode(ir.Kind(n.Kind))
	if n.Kind == "" {
		r.ws.Once("empty kind", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "kind"},
			fmt.Sprintf("%s: empty node kind read as span", n.Pos)))
		out.Kind = ir.KindSpan
	}
	out.Props = r.properties(n.Props)
	if n.Span != nil {
		start, err1 := strconv.Atoi(n.Span.Start)
		end, err2 := strconv.Atoi(n.Span.End)
		if err1 == nil && err2 == nil {
			out.Span = &ir.Span{Start: start, End: end}
		} else {
			r.ws.Lost(ir.SeverityInfo, "span", fmt.Sprintf("%s: span out of range", n.Pos))
		}
	}
	if len(n.Children) > 0 {
		out.Children = make([]ir.Node, 0, len(n.Children))
		for _, c := range n.Children {
			out.Children = append(out.Children, r.node(c))
		}
	}
	return out
}

func (r *reader) properties(entries []*entry) ir.Properties {
	var p ir.Properties
	for _, e := range entries {
		v, err := r.value(e.Value)
		if err != nil {
			r.ws.Add(ir.NewWarning(ir.SeverityMinor, ir.UnsupportedProperty{Key: e.Key},
				fmt.Sprintf("%s: %s dropped: %v", e.Pos, e.Key, err)))
			continue
		}
		p.Set(e.Key, v)
	}
	return p
}

func (r *reader) value(v *value) (ir.Value, error) {
	switch {
	case v.String != nil:
		return ir.String(*v.String), nil
	case v.Int != nil:
		i, err := strconv.ParseInt(*v.Int, 10, 64)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Int(i), nil
	case v.Float != nil:
		f, err := strconv.ParseFloat(*v.Float, 64)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Float(f), nil
	case v.Bool != nil:
		return ir.Bool(*v.Bool == "true"), nil
	case v.List != nil:
		items := make([]ir.Value, 0, len(v.List.Items))
		for _, item := range v.List.Items {
			iv, err := r.value(item)
			if err != nil {
				return ir.Value{}, err
			}
			items = append(items, iv)
		}
		return ir.List(items...), nil
	case v.Map != nil:
		m := make(map[string]ir.Value, len(v.Map.Entries))
		for _, e := range v.Map.Entries {
			ev, err := r.value(e.Value)
			if err != nil {
				return ir.Value{}, err
			}
			m[e.Key] = ev
		}
		return ir.Map(m), nil
	}
	return ir.Value{}, fmt.Errorf("empty value")
}

func (r *reader) resource(res *resource) (ir.ResourceID, ir.Resource, bool) {
	var (
		id      ir.ResourceID
		rs      ir.Resource
		hasData bool
	)
	for _, f := range res.Fields {
		switch f.Key {
		case "id":
			id = ir.ResourceID(str(f.Value))
		case "name":
			rs.Name = str(f.Value)
		case "mime":
			rs.MimeType = str(f.Value)
		case "size":
		case "data":
			data, err := base64.StdEncoding.DecodeString(str(f.Value))
			if err != nil {
				r.ws.Add(ir.NewWarning(ir.SeverityMajor, ir.ResourceFailed{ID: id},
					fmt.Sprintf("%s: resource data is not valid base64", f.Pos)))
				return "", rs, false
			}
			rs.Data = data
			hasData = true
		case "metadata":
			if f.Value.Map != nil {
				rs.Metadata = r.properties(f.Value.Map.Entries)
			}
		default:
			r.ws.Add(ir.NewWarning(ir.SeverityInfo, ir.UnsupportedProperty{Key: f.Key},
				fmt.Sprintf("%s: unknown resource field %q ignored", f.Pos, f.Key)))
		}
	}
	if id == "" {
		r.ws.Lost(ir.SeverityMajor, "resource", fmt.Sprintf("%s: resource without id dropped", res.Pos))
		return "", rs, false
	}
	if !hasData {
		r.ws.Add(ir.NewWarning(ir.SeverityMajor, ir.ResourceFailed{ID: id},
			fmt.Sprintf("%s: resource %s has no data", res.Pos, id)))
	}
	return id, rs, true
}

func str(v *value) string {
	if v != nil && v.String != nil {
		return *v.String
	}
	return ""
}

// nesting returns the deepest bracket nesting outside string literals.
func nesting(s string) int {
	depth, deepest := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"' || c == '\n':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[', '(':
			depth++
			deepest = max(deepest, depth)
		case '}', ']', ')':
			if depth > 0 {
				depth--
			}
		case '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		}
	}
	return deepest
}
