// Package txt provides the embedded handler for plain text.
//
// Plain text carries no semantic structure, only positioned text, so the
// reader performs layout-only segmentation: blank lines separate
// paragraphs and form feeds become page breaks. The writer accepts any
// document and reports whatever plain text cannot show.
package txt

import (
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// FormatName is the registered format name.
const FormatName = "plaintext"

// Source metadata keys recorded when ParseOptions.PreserveSourceInfo is set.
const (
	SourcePages      = "plaintext:pages"
	SourceLineEnding = "plaintext:line_ending"
)

// Handler implements the plain text reader and writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "Plain text",
		Aliases:     []string{"txt", "text"},
		Extensions:  []string{"txt", "text"},
		MIMETypes:   []string{"text/plain; charset=utf-8"},
		Version:     "1.0.0",
		Reader:      &Handler{},
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

// Parse implements plugins.Reader.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	var ws ir.Warnings
	text, replaced, err := base.DecodeText(FormatName, input, opts.Option("charset", ""))
	if err != nil {
		return nil, err
	}
	if replaced {
		ws.Lost(ir.SeverityMinor, "encoding", "invalid UTF-8 sequences replaced")
	}

	doc := opts.NewDocument(FormatName)
	pages := 1
	for _, seg := range base.SegmentText(text) {
		if seg.PageBreak {
			pages = seg.Page
			doc.Content = doc.Content.Child(ir.NewNode(ir.KindHorizontalRule).
				Prop(ir.PropLayoutPageBreak, ir.Bool(true)).
				Prop(ir.PropLayoutPage, ir.Int(int64(seg.Page))))
			continue
		}
		doc.Content = doc.Content.Child(ir.NewNode(ir.KindParagraph).Child(ir.Text(seg.Text)))
	}

	if opts.PreserveSourceInfo {
		ending := "\n"
		if strings.Contains(text, "\r\n") {
			ending = "\r\n"
		}
		doc.Source.Metadata.Set(SourcePages, ir.Int(int64(pages)))
		doc.Source.Metadata.Set(SourceLineEnding, ir.String(ending))
	}
	return ir.WithWarnings(doc, ws.List()), nil
}
