package native

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

const indentUnit = "  "

type emitter struct {
	b  strings.Builder
	ws *ir.Warnings
}

func (e *emitter) line(depth int, parts ...string) {
	e.b.WriteString(strings.Repeat(indentUnit, depth))
	for _, p := range parts {
		e.b.WriteString(p)
	}
	e.b.WriteByte('\n')
}

// Emit implements plugins.Writer.
//
// Option "data=false" writes resource sizes without payloads, which makes
// the dump unreadable as a lossless copy and is reported as a loss.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var ws ir.Warnings
	e := &emitter{ws: &ws}
	withData := opts.Option("data", "true") != "false"

	e.line(0, "Document {")
	if doc.Metadata.Len() > 0 {
		e.line(1, "metadata: {")
		e.entries(2, doc.Metadata)
		e.line(1, "}")
	}
	if doc.Source != nil && doc.Source.Format != "" {
		if doc.Source.Metadata.Len() == 0 {
			e.line(1, "source: ", quote(doc.Source.Format))
		} else {
			e.line(1, "source: ", quote(doc.Source.Format), " {")
			e.entries(2, doc.Source.Metadata)
			e.line(1, "}")
		}
	}
	e.line(1, "content:")
	e.node(2, doc.Content)

	if ids := doc.ResourceIDs(); len(ids) > 0 {
		e.line(1, "resources: [")
		for _, id := range ids {
			e.resource(2, id, doc.Resources[id], withData)
		}
		e.line(1, "]")
		if !withData {
			ws.Lost(ir.SeverityMajor, "resource data", "resource payloads omitted (data=false)")
		}
	}
	e.line(0, "}")
	return ir.WithWarnings([]byte(e.b.String()), ws.List()), nil
}

func (e *emitter) entries(depth int, p ir.Properties) {
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		e.line(depth, name(k), ": ", formatValue(v))
	}
}

func (e *emitter) node(depth int, n ir.Node) {
	var head strings.Builder
	head.WriteString(name(string(n.Kind)))
	head.WriteString("(")
	if n.Props.Len() > 0 {
		head.WriteString("{ ")
		head.WriteString(inlineProps(n.Props))
		head.WriteString(" }")
	}
	head.WriteString(")")
	if n.Span != nil {
		head.WriteString(" @(")
		head.WriteString(strconv.Itoa(n.Span.Start))
		head.WriteString(", ")
		head.WriteString(strconv.Itoa(n.Span.End))
		head.WriteString(")")
	}
	if len(n.Children) == 0 {
		e.line(depth, head.String())
		return
	}
	e.line(depth, head.String(), " [")
	for _, c := range n.Children {
		e.node(depth+1, c)
	}
	e.line(depth, "]")
}

func (e *emitter) resource(depth int, id ir.ResourceID, r ir.Resource, withData bool) {
	fields := []string{"id: " + quote(string(id))}
	if r.Name != "" {
		fields = append(fields, "name: "+quote(r.Name))
	}
	fields = append(fields, "mime: "+quote(r.MimeType), "size: "+strconv.Itoa(r.Size()))
	if withData {
		fields = append(fields, "data: "+quote(base64.StdEncoding.EncodeToString(r.Data)))
	}
	if r.Metadata.Len() > 0 {
		fields = append(fields, "metadata: { "+inlineProps(r.Metadata)+" }")
	}
	e.line(depth, "Resource { ", strings.Join(fields, ", "), " }")
}

func inlineProps(p ir.Properties) string {
	keys := p.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, _ := p.Get(k)
		parts[i] = name(k) + ": " + formatValue(v)
	}
	return strings.Join(parts, ", ")
}

func formatValue(v ir.Value) string {
	switch v.Kind() {
	case ir.ValueString:
		s, _ := v.AsString()
		return quote(s)
	case ir.ValueInt:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case ir.ValueFloat:
		f, _ := v.AsFloat()
		return formatFloat(f)
	case ir.ValueBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case ir.ValueList:
		items, _ := v.AsList()
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ir.ValueMap:
		m, _ := v.AsMap()
		var p ir.Properties
		for k, item := range m {
			p.Set(k, item)
		}
		if p.Len() == 0 {
			return "{}"
		}
		return "{ " + inlineProps(p) + " }"
	}
	return `""`
}

// formatFloat always yields a token the lexer reads as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func quote(s string) string {
	return strconv.Quote(s)
}
