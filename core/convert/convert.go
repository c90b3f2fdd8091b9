// Package convert runs the read → transform → write pipeline over the
// format registry.
//
// A Converter resolves formats, recovers from panicking plugins, collects
// the reader's and writer's warnings in order and summarizes them as a loss
// report. Results can be persisted to a content-addressed store or packed
// into a bundle archive.
package convert

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Rescribe/core/bundle"
	"github.com/FocuswithJustin/Rescribe/core/cas"
	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
)

// Pipeline stages reported to observers and in logs.
const (
	StageResolve   = "resolve"
	StageRead      = "read"
	StageTransform = "transform"
	StageWrite     = "write"
	StageDone      = "done"
)

// Converter dispatches conversions to registered formats.
type Converter struct {
	// Registry supplies formats. Nil means plugins.Default.
	Registry *plugins.Registry
	// Observer is notified as conversions progress. Optional.
	Observer Observer
}

// New returns a converter over reg.
func New(reg *plugins.Registry) *Converter {
	return &Converter{Registry: reg}
}

func (c *Converter) registry() *plugins.Registry {
	if c.Registry == nil {
		return plugins.Default
	}
	return c.Registry
}

// Request describes one conversion.
type Request struct {
	Input []byte
	// InputPath and OutputPath only guide format resolution by extension.
	InputPath  string
	OutputPath string
	// From and To name formats explicitly. An empty From falls back to the
	// input extension and then to content sniffing.
	From string
	To   string

	Transforms []plugins.Transformer
	Parse      plugins.ParseOptions
	Emit       plugins.EmitOptions
}

// Result is a successful conversion.
type Result struct {
	RunID    string
	From     string
	To       string
	Output   []byte
	Document *ir.Document
	// Warnings holds the reader's warnings followed by the writer's.
	Warnings  []ir.FidelityWarning
	Loss      *ir.LossReport
	Resources []ir.ExportedResource
	Duration  time.Duration
}

// Read parses data with the named format.
func (c *Converter) Read(data []byte, format string, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	f, err := c.registry().ResolveReader(format, "")
	if err != nil {
		return nil, err
	}
	return parse(f, data, opts)
}

// Write serializes doc with the named format.
func (c *Converter) Write(doc *ir.Document, format string, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	f, err := c.registry().ResolveWriter(format, "")
	if err != nil {
		return nil, err
	}
	return emit(f, doc, opts)
}

// Transform applies ts in order. On failure the input document is left as
// it was and the first error is returned.
func (c *Converter) Transform(doc *ir.Document, ts ...plugins.Transformer) (*ir.Document, error) {
	cur := doc
	for _, t := range ts {
		next, err := transform(t, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Convert runs the full pipeline for req.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, res.RunID)

	reg := c.registry()
	src, err := reg.ResolveInput(req.From, req.InputPath, req.Input)
	if err != nil {
		return nil, c.fail(ctx, res, StageResolve, req.From, err)
	}
	dst, err := reg.ResolveWriter(req.To, req.OutputPath)
	if err != nil {
		return nil, c.fail(ctx, res, StageResolve, req.To, err)
	}
	res.From, res.To = src.Name, dst.Name
	c.notify(Event{RunID: res.RunID, Stage: StageRead, From: res.From, To: res.To})

	read, err := parse(src, req.Input, req.Parse)
	if err != nil {
		return nil, c.fail(ctx, res, StageRead, src.Name, err)
	}
	c.record(ctx, res, StageRead, read.Warnings)

	doc := read.Value
	if len(req.Transforms) > 0 {
		c.notify(Event{RunID: res.RunID, Stage: StageTransform, From: res.From, To: res.To})
		if doc, err = c.Transform(doc, req.Transforms...); err != nil {
			return nil, c.fail(ctx, res, StageTransform, "", err)
		}
	}
	res.Document = doc

	c.notify(Event{RunID: res.RunID, Stage: StageWrite, From: res.From, To: res.To})
	written, err := emit(dst, doc, req.Emit)
	if err != nil {
		return nil, c.fail(ctx, res, StageWrite, dst.Name, err)
	}
	c.record(ctx, res, StageWrite, written.Warnings)
	res.Output = written.Value

	if exp, ok := dst.Writer.(plugins.ResourceExporter); ok {
		res.Resources = exp.ExportResources(doc, req.Emit)
	}
	res.Loss = ir.NewLossReport(res.From, res.To, res.Warnings)
	res.Duration = time.Since(start)

	logging.Conversion(ctx, res.From, res.To, len(res.Warnings), string(res.Loss.LossClass), res.Duration,
		"resources", len(res.Resources))
	c.notify(Event{
		RunID:     res.RunID,
		Stage:     StageDone,
		From:      res.From,
		To:        res.To,
		Warnings:  res.Warnings,
		LossClass: res.Loss.LossClass,
		Duration:  res.Duration,
	})
	return res, nil
}

// LossClass returns the overall fidelity class of the result.
func (r *Result) LossClass() ir.LossClass {
	if r.Loss == nil {
		return ir.ClassifyWarnings(r.Warnings)
	}
	return r.Loss.LossClass
}

// StoreResources persists the exported resources in store.
func (r *Result) StoreResources(store *cas.Store) ([]cas.Entry, error) {
	entries := make([]cas.Entry, 0, len(r.Resources))
	for _, res := range r.Resources {
		e, err := store.PutResource(res)
		if err != nil {
			return nil, fmt.Errorf("failed to store resource %s: %w", res.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Bundle packs the output and exported resources. outputName is the file
// name of the primary output inside the archive.
func (r *Result) Bundle(tool bundle.ToolInfo, outputName, mimeType string) *bundle.Bundle {
	b := bundle.New(tool)
	b.Manifest.RunID = r.RunID
	b.Manifest.SourceFormat = r.From
	b.Manifest.Loss = r.Loss
	b.SetOutput(outputName, r.To, mimeType, r.Output)
	for _, res := range r.Resources {
		b.AddResource(res)
	}
	return b
}

func (c *Converter) record(ctx context.Context, res *Result, stage string, ws []ir.FidelityWarning) {
	for _, w := range ws {
		category, subject := "", ""
		if w.Kind != nil {
			category, subject = w.Kind.Category(), w.Kind.Subject()
		}
		logging.FidelityWarning(ctx, stage, w.Severity.String(), category, subject, w.Message)
	}
	res.Warnings = append(res.Warnings, ws...)
}

func (c *Converter) fail(ctx context.Context, res *Result, stage, format string, err error) error {
	logging.ConversionError(ctx, stage, format, err)
	c.notify(Event{RunID: res.RunID, Stage: stage, From: res.From, To: res.To, Err: err})
	return err
}

func (c *Converter) notify(e Event) {
	if c.Observer != nil {
		c.Observer.Observe(e)
	}
}

// parse calls the format's reader, turning a panic into a ParseError.
func parse(f *plugins.Format, data []byte, opts plugins.ParseOptions) (res *ir.ConversionResult[*ir.Document], err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug("reader panic", "format", f.Name, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, &apperrors.ParseError{
				Kind:   apperrors.ParseInvalid,
				Format: f.Name,
				Reason: fmt.Sprintf("reader panicked: %v", r),
			}
		}
	}()
	res, err = f.Reader.Parse(data, opts)
	if err == nil && (res == nil || res.Value == nil) {
		err = apperrors.NewParse(apperrors.ParseInvalid, f.Name, "reader returned no document")
	}
	if err == nil && res.Value.Content.Kind != ir.KindDocument {
		err = apperrors.NewParse(apperrors.ParseInvalid, f.Name, fmt.Sprintf("root node is %q, not document", res.Value.Content.Kind))
	}
	return res, err
}

// emit calls the format's writer, turning a panic into an EmitError.
func emit(f *plugins.Format, doc *ir.Document, opts plugins.EmitOptions) (res *ir.ConversionResult[[]byte], err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug("writer panic", "format", f.Name, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, &apperrors.EmitError{
				Kind:   apperrors.EmitIO,
				Format: f.Name,
				Reason: fmt.Sprintf("writer panicked: %v", r),
			}
		}
	}()
	res, err = f.Writer.Emit(doc, opts)
	if err == nil && res == nil {
		err = apperrors.NewEmit(apperrors.EmitIO, f.Name, "writer returned no output")
	}
	return res, err
}

// transform applies t, turning a panic or an untyped error into a
// TransformError.
func transform(t plugins.Transformer, doc *ir.Document) (out *ir.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &apperrors.TransformError{Transform: t.Name(), Reason: fmt.Sprintf("panicked: %v", r)}
		}
	}()
	out, err = t.Transform(doc)
	if err != nil {
		var te *apperrors.TransformError
		if !apperrors.As(err, &te) {
			err = &apperrors.TransformError{Transform: t.Name(), Reason: "failed", Err: err}
		}
		return nil, err
	}
	if out == nil {
		return nil, apperrors.NewTransform(t.Name(), "returned no document")
	}
	return out, nil
}
