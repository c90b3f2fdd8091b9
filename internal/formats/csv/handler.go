// Package csv provides the embedded handler for comma-separated values.
//
// The reader turns delimited records into a single table whose first row is
// flagged as the header. The writer serializes every table in a document;
// anything outside tables is reported and dropped.
package csv

import (
	"bytes"
	stdcsv "encoding/csv"
	"fmt"
	"unicode/utf8"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// Source metadata keys recorded when ParseOptions.PreserveSourceInfo is set.
const (
	SourceDelimiter = "csv:delimiter"
	SourceColumns   = "csv:columns"
	SourceRagged    = "csv:ragged"
)

// Handler reads and writes one delimiter-separated format.
type Handler struct {
	Name      string
	Delimiter rune
}

// NewHandler returns a handler for the named format using delim.
func NewHandler(name string, delim rune) *Handler {
	return &Handler{Name: name, Delimiter: delim}
}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	h := NewHandler("csv", ',')
	return &plugins.Format{
		Name:        h.Name,
		Description: "Comma-separated values",
		Extensions:  []string{"csv"},
		MIMETypes:   []string{"text/csv"},
		Version:     "1.0.0",
		Reader:      h,
		Writer:      h,
	}
}

// Register registers this format with the default registry.
func Register() {
	plugins.RegisterFormat(Manifest())
}

func init() {
	Register()
}

func (h *Handler) delimiter(opt string) rune {
	switch opt {
	case "":
		return h.Delimiter
	case "tab", `\t`:
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(opt)
	if r == utf8.RuneError || r == '"' || r == '\n' || r == '\r' {
		return h.Delimiter
	}
	return r
}

// Parse implements plugins.Reader.
//
// Options: "delimiter" overrides the separator, "header=false" disables the
// header flag on the first row, "charset" names the input encoding.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	var ws ir.Warnings
	text, replaced, err := base.DecodeText(h.Name, input, opts.Option("charset", ""))
	if err != nil {
		return nil, err
	}
	if replaced {
		ws.Lost(ir.SeverityMinor, "encoding", "invalid UTF-8 sequences replaced")
	}

	delim := h.delimiter(opts.Option("delimiter", ""))
	records, open := base.NewTokenizer(delim).Records(text)
	if open {
		ws.Simplify(ir.SeverityMinor, "quoting", "unterminated quote; last field runs to end of input")
	}

	header := opts.Option("header", "true") != "false"
	doc := opts.NewDocument(h.Name)
	columns, ragged := 0, false
	if len(records) > 0 {
		table := ir.NewNode(ir.KindTable)
		for i, rec := range records {
			if i > 0 && len(rec) != columns {
				ragged = true
			}
			columns = max(columns, len(rec))
			row := ir.NewNode(ir.KindTableRow)
			for _, field := range rec {
				cell := ir.NewNode(ir.KindTableCell).Child(ir.Text(field))
				if i == 0 && header {
					cell = cell.Prop(ir.PropHeader, ir.Bool(true))
				}
				row = row.Child(cell)
			}
			table = table.Child(row)
		}
		doc.Content = doc.Content.Child(table)
	}

	if opts.PreserveSourceInfo {
		doc.Source.Metadata.Set(SourceDelimiter, ir.String(string(delim)))
		doc.Source.Metadata.Set(SourceColumns, ir.Int(int64(columns)))
		doc.Source.Metadata.Set(SourceRagged, ir.Bool(ragged))
	}
	return ir.WithWarnings(doc, ws.List()), nil
}

// Emit implements plugins.Writer.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	delim := h.Delimiter
	if src, ok := opts.SourceMetadata(doc, h.Name); ok {
		delim = h.delimiter(src.StringOr(SourceDelimiter, ""))
	}
	if opt := opts.Option("delimiter", ""); opt != "" {
		delim = h.delimiter(opt)
	}

	var (
		ws     ir.Warnings
		tables []ir.Node
		loose  []ir.Node
	)
	for _, n := range doc.Content.Children {
		collect(n, &tables, &loose)
	}

	var buf bytes.Buffer
	w := stdcsv.NewWriter(&buf)
	w.Comma = delim

	if len(tables) == 0 {
		// Without tables the document degrades to one column of block text.
		for _, n := range loose {
			if err := w.Write([]string{base.CollapseSpace(ir.TextContent(n))}); err != nil {
				return nil, h.ioError(err)
			}
		}
		if len(loose) > 0 {
			ws.Simplify(ir.SeverityMajor, "document", fmt.Sprintf("document has no tables; blocks written as a single %s column", h.Name))
		}
	} else {
		if len(loose) > 0 {
			ws.Lost(ir.SeverityMajor, "content", fmt.Sprintf("%d blocks outside tables dropped", len(loose)))
		}
		if len(tables) > 1 {
			ws.Simplify(ir.SeverityMinor, "tables", fmt.Sprintf("%d tables written one after another", len(tables)))
		}
		for ti, t := range tables {
			if ti > 0 {
				w.Flush()
				buf.WriteString("\n")
			}
			for _, row := range base.TableRows(t) {
				if row.Nested {
					ws.Once("nested", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table cell structure"}, "block content in cells flattened to text"))
				}
				if err := w.Write(row.Cells); err != nil {
					return nil, h.ioError(err)
				}
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, h.ioError(err)
	}
	return ir.WithWarnings(buf.Bytes(), ws.List()), nil
}

func (h *Handler) ioError(err error) error {
	return &apperrors.EmitError{Kind: apperrors.EmitIO, Format: h.Name, Reason: "write failed", Err: err}
}

// collect splits a block into tables and the remaining blocks. Containers
// holding tables are searched; other blocks are kept whole.
func collect(n ir.Node, tables, loose *[]ir.Node) {
	if n.Kind == ir.KindTable {
		*tables = append(*tables, n)
		return
	}
	if !ir.Contains(n, ir.KindTable) {
		*loose = append(*loose, n)
		return
	}
	for _, c := range n.Children {
		collect(c, tables, loose)
	}
}
