// Package markdown provides the embedded writer for GitHub-flavored
// Markdown.
//
// The format is write-only. Embedded resources are referenced by file name
// and handed to the host through plugins.ResourceExporter so they can be
// stored next to the output.
package markdown

import (
	"encoding/json"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

// FormatName is the registered format name.
const FormatName = "markdown"

// Handler implements the Markdown writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "GitHub-flavored Markdown (write only)",
		Aliases:     []string{"md", "gfm"},
		Extensions:  []string{"md", "markdown"},
		MIMETypes:   []string{"text/markdown; charset=utf-8"},
		Version:     "1.0.0",
		Writer:      &Handler{},
	}
}

// Register registers this format with the default registry.
func Register() {
	plugins.RegisterFormat(Manifest())
}

func init() {
	Register()
}

// Emit implements plugins.Writer.
//
// Options: "resource_dir" is prefixed to exported resource file names,
// "front_matter=true" writes string metadata as a front matter block.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var ws ir.Warnings
	e := &emitter{ws: &ws, doc: doc, resourceDir: opts.Option("resource_dir", "")}

	if opts.Option("front_matter", "false") == "true" {
		e.frontMatter(doc.Metadata)
	}
	if doc.Content.Kind == ir.KindDocument {
		e.blocks(doc.Content.Children)
	} else {
		e.blocks([]ir.Node{doc.Content})
	}

	out := strings.TrimRight(e.b.String(), "\n")
	if out != "" {
		out += "\n"
	}
	return ir.WithWarnings([]byte(out), ws.List()), nil
}

// ExportResources implements plugins.ResourceExporter. Only resources the
// content references are exported.
func (h *Handler) ExportResources(doc *ir.Document, opts plugins.EmitOptions) []ir.ExportedResource {
	refs := make(map[ir.ResourceID]bool)
	for _, id := range doc.ResourceRefs() {
		refs[id] = true
	}
	var out []ir.ExportedResource
	for _, r := range doc.ExportResources() {
		if refs[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (e *emitter) frontMatter(meta ir.Properties) {
	if meta.Len() == 0 {
		return
	}
	e.write("---\n")
	for _, k := range meta.Keys() {
		v, _ := meta.Get(k)
		// JSON scalars are valid YAML flow scalars.
		b, err := json.Marshal(v.Interface())
		if err != nil {
			continue
		}
		e.write(k + ": " + string(b) + "\n")
	}
	e.write("---\n\n")
}
