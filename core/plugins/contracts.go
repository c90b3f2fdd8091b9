// Package plugins defines the contracts format handlers implement and the
// registry that dispatches conversions to them.
//
// A format handler supplies a Reader, a Writer, or both. Handlers are
// compiled into the binary and register themselves from init(); importing
// internal/embedded pulls in every built-in format.
package plugins

import "github.com/FocuswithJustin/Rescribe/core/ir"

// ParseOptions configures a Reader.
type ParseOptions struct {
	// PreserveSourceInfo asks the reader to record format-specific details
	// in Document.Source.Metadata.
	PreserveSourceInfo bool

	// EmbedResources asks the reader to embed referenced binary data
	// (for example data: URIs) as document resources.
	EmbedResources bool

	// IDs overrides the resource identifier source. Nil means ir.DefaultIDs.
	IDs ir.IDGenerator

	// Extra holds format-specific options. Unknown keys are ignored.
	Extra map[string]string
}

// Option returns Extra[key] or def.
func (o ParseOptions) Option(key, def string) string {
	if v, ok := o.Extra[key]; ok {
		return v
	}
	return def
}

// NewDocument returns an empty document using the configured id source and
// recording format as its source.
func (o ParseOptions) NewDocument(format string) *ir.Document {
	doc := ir.NewDocumentWithIDs(o.IDs)
	doc.Source = &ir.SourceInfo{Format: format}
	return doc
}

// EmitOptions configures a Writer.
type EmitOptions struct {
	// Pretty asks for human-oriented formatting where the format allows it.
	Pretty bool

	// UseSourceInfo lets a writer consult Document.Source.Metadata when the
	// document was read from the same format.
	UseSourceInfo bool

	// Extra holds format-specific options. Unknown keys are ignored.
	Extra map[string]string
}

// Option returns Extra[key] or def.
func (o EmitOptions) Option(key, def string) string {
	if v, ok := o.Extra[key]; ok {
		return v
	}
	return def
}

// SourceMetadata returns the document's source metadata when UseSourceInfo
// is set and the document was read from format. Otherwise it reports false.
func (o EmitOptions) SourceMetadata(doc *ir.Document, format string) (ir.Properties, bool) {
	if !o.UseSourceInfo || doc.Source == nil || doc.Source.Format != format {
		return ir.Properties{}, false
	}
	return doc.Source.Metadata, true
}

// Reader parses bytes into a Document.
//
// Parse must terminate on any input, including empty, truncated, and
// adversarial bytes. Successful results have a root node of kind
// "document"; everything the reader could not represent is reported as a
// warning. Hard failures are *errors.ParseError.
type Reader interface {
	Parse(input []byte, opts ParseOptions) (*ir.ConversionResult[*ir.Document], error)
}

// Writer serializes a Document.
//
// Emit must traverse the whole tree. Unknown kinds degrade to their text
// with a warning instead of failing. Hard failures are *errors.EmitError.
type Writer interface {
	Emit(doc *ir.Document, opts EmitOptions) (*ir.ConversionResult[[]byte], error)
}

// Transformer rewrites a Document. A failing transform returns a
// *errors.TransformError and leaves its input untouched.
type Transformer interface {
	Name() string
	Transform(doc *ir.Document) (*ir.Document, error)
}

// ResourceExporter is implemented by writers that reference resources by
// file name instead of inlining them. The host stores the returned
// resources next to the output.
type ResourceExporter interface {
	ExportResources(doc *ir.Document, opts EmitOptions) []ir.ExportedResource
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(input []byte, opts ParseOptions) (*ir.ConversionResult[*ir.Document], error)

// Parse calls f.
func (f ReaderFunc) Parse(input []byte, opts ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	return f(input, opts)
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(doc *ir.Document, opts EmitOptions) (*ir.ConversionResult[[]byte], error)

// Emit calls f.
func (f WriterFunc) Emit(doc *ir.Document, opts EmitOptions) (*ir.ConversionResult[[]byte], error) {
	return f(doc, opts)
}
