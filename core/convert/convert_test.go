package convert

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/Rescribe/core/bundle"
	"github.com/FocuswithJustin/Rescribe/core/cas"
	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

// upper reads text into one paragraph and writes it upper-cased.
func upper() *plugins.Format {
	return &plugins.Format{
		Name:       "upper",
		Extensions: []string{"up"},
		Reader: plugins.ReaderFunc(func(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
			doc := opts.NewDocument("upper")
			text := strings.TrimPrefix(string(input), "UP:")
			doc.Content = doc.Content.Child(ir.NewNode(ir.KindParagraph).Child(ir.Text(text)))
			return ir.WithWarnings(doc, []ir.FidelityWarning{
				ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "case"}, "read"),
			}), nil
		}),
		Writer: plugins.WriterFunc(func(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
			out := []byte(strings.ToUpper(ir.TextContent(doc.Content)))
			return ir.WithWarnings(out, []ir.FidelityWarning{
				ir.NewWarning(ir.SeverityInfo, ir.FeatureLost{Feature: "case"}, "written"),
			}), nil
		}),
		Sniff: func(data []byte) bool { return bytes.HasPrefix(data, []byte("UP:")) },
	}
}

func panicking() *plugins.Format {
	return &plugins.Format{
		Name: "boom",
		Reader: plugins.ReaderFunc(func([]byte, plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
			panic("reader exploded")
		}),
		Writer: plugins.WriterFunc(func(*ir.Document, plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
			panic("writer exploded")
		}),
	}
}

func readOnly() *plugins.Format {
	return &plugins.Format{Name: "ro", Reader: upper().Reader}
}

// exporter references resources by name instead of inlining them.
type exporter struct{}

func (exporter) Emit(doc *ir.Document, _ plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var names []string
	for _, r := range doc.ExportResources() {
		names = append(names, r.FileName())
	}
	return ir.OK([]byte(strings.Join(names, "\n"))), nil
}

func (exporter) ExportResources(doc *ir.Document, _ plugins.EmitOptions) []ir.ExportedResource {
	return doc.ExportResources()
}

func withImages() *plugins.Format {
	return &plugins.Format{
		Name: "images",
		Reader: plugins.ReaderFunc(func(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
			doc := opts.NewDocument("images")
			id := doc.Embed(ir.NewResource("image/png", input).WithName("pic.png"))
			doc.Content = doc.Content.Child(ir.NewNode(ir.KindImage).Prop(ir.PropResource, ir.String(string(id))))
			return ir.OK(doc), nil
		}),
		Writer: exporter{},
	}
}

func newConverter(t *testing.T) (*Converter, *[]Event) {
	t.Helper()
	reg := plugins.NewRegistry()
	for _, f := range []*plugins.Format{upper(), panicking(), readOnly(), withImages()} {
		if err := reg.Register(f); err != nil {
			t.Fatalf("Register(%s) error = %v", f.Name, err)
		}
	}
	var events []Event
	c := New(reg)
	c.Observer = ObserverFunc(func(e Event) { events = append(events, e) })
	return c, &events
}

func TestConvert(t *testing.T) {
	c, events := newConverter(t)
	res, err := c.Convert(context.Background(), Request{Input: []byte("hello"), From: "upper", To: "upper"})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if string(res.Output) != "HELLO" {
		t.Errorf("Output = %q, want HELLO", res.Output)
	}
	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", res.RunID, err)
	}

	var messages []string
	for _, w := range res.Warnings {
		messages = append(messages, w.Message)
	}
	if diff := cmp.Diff([]string{"read", "written"}, messages); diff != "" {
		t.Errorf("warning order mismatch (-want +got):\n%s", diff)
	}
	if res.LossClass() != ir.LossL2 {
		t.Errorf("LossClass() = %s, want L2", res.LossClass())
	}
	if len(res.Loss.LostElements) != 1 || res.Loss.LostElements[0].Subject != "case" {
		t.Errorf("LostElements = %+v", res.Loss.LostElements)
	}

	var stages []string
	for _, e := range *events {
		stages = append(stages, e.Stage)
	}
	if diff := cmp.Diff([]string{StageRead, StageWrite, StageDone}, stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	if last := (*events)[len(*events)-1]; len(last.Warnings) != 2 || last.RunID != res.RunID {
		t.Errorf("done event = %+v", last)
	}
}

func TestConvertResolvesInput(t *testing.T) {
	c, _ := newConverter(t)
	tests := []struct {
		name string
		req  Request
	}{
		{"extension", Request{Input: []byte("a"), InputPath: "in.up", OutputPath: "out.up"}},
		{"sniff", Request{Input: []byte("UP:a"), To: "upper"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Convert(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if res.From != "upper" || string(res.Output) != "A" {
				t.Errorf("From = %s, Output = %q", res.From, res.Output)
			}
		})
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"undetermined input", Request{Input: []byte("?"), To: "upper"}, apperrors.ErrCannotDetermineFormat},
		{"unknown target", Request{Input: []byte("x"), From: "upper", To: "nope"}, apperrors.ErrNotFound},
		{"read-only target", Request{Input: []byte("x"), From: "upper", To: "ro"}, apperrors.ErrUnsupported},
		{"reader panic", Request{Input: []byte("x"), From: "boom", To: "upper"}, apperrors.ErrInvalidInput},
		{"writer panic", Request{Input: []byte("x"), From: "upper", To: "boom"}, apperrors.ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, events := newConverter(t)
			_, err := c.Convert(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Convert() error = %v, want %v", err, tt.want)
			}
			if n := len(*events); n == 0 || !(*events)[n-1].Failed() {
				t.Errorf("last event does not report the failure: %+v", *events)
			}
		})
	}

	c, _ := newConverter(t)
	_, err := c.Convert(context.Background(), Request{Input: []byte("x"), From: "boom", To: "upper"})
	var pe *apperrors.ParseError
	if !errors.As(err, &pe) || pe.Format != "boom" || !strings.Contains(pe.Reason, "reader exploded") {
		t.Errorf("error = %#v, want ParseError from boom", err)
	}
}

type failing struct{ panics bool }

func (failing) Name() string { return "failing" }

func (f failing) Transform(doc *ir.Document) (*ir.Document, error) {
	if f.panics {
		panic("transform exploded")
	}
	return nil, errors.New("no good")
}

type appendText struct{}

func (appendText) Name() string { return "append" }

func (appendText) Transform(doc *ir.Document) (*ir.Document, error) {
	out := doc.Clone()
	out.Content = out.Content.Child(ir.NewNode(ir.KindParagraph).Child(ir.Text("!")))
	return out, nil
}

func TestTransform(t *testing.T) {
	c, _ := newConverter(t)
	res, err := c.Convert(context.Background(), Request{
		Input:      []byte("hi"),
		From:       "upper",
		To:         "upper",
		Transforms: []plugins.Transformer{appendText{}, appendText{}},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if string(res.Output) != "HI!!" {
		t.Errorf("Output = %q, want HI!!", res.Output)
	}

	doc := ir.NewDocument()
	for _, f := range []failing{{}, {panics: true}} {
		out, err := c.Transform(doc, appendText{}, f)
		var te *apperrors.TransformError
		if !errors.As(err, &te) || te.Transform != "failing" || out != nil {
			t.Errorf("Transform() = %v, %v; want TransformError from failing", out, err)
		}
		if len(doc.Content.Children) != 0 {
			t.Error("input document modified by a failed pipeline")
		}
	}
}

func TestReadWrite(t *testing.T) {
	c, _ := newConverter(t)
	read, err := c.Read([]byte("x"), "upper", plugins.ParseOptions{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	written, err := c.Write(read.Value, "upper", plugins.EmitOptions{})
	if err != nil || string(written.Value) != "X" {
		t.Errorf("Write() = %v, %v", written, err)
	}
	if _, err := c.Read(nil, "ro", plugins.ParseOptions{}); err != nil {
		t.Errorf("Read(ro) error = %v", err)
	}
	if _, err := c.Write(read.Value, "ro", plugins.EmitOptions{}); !errors.Is(err, apperrors.ErrUnsupported) {
		t.Errorf("Write(ro) error = %v, want ErrUnsupported", err)
	}
}

func TestResourcesStoredAndBundled(t *testing.T) {
	c, _ := newConverter(t)
	res, err := c.Convert(context.Background(), Request{
		Input: []byte("png"),
		From:  "images",
		To:    "images",
		Parse: plugins.ParseOptions{IDs: ir.NewCounter("")},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(res.Resources) != 1 || res.Resources[0].Name != "pic.png" {
		t.Fatalf("Resources = %+v", res.Resources)
	}

	store, err := cas.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	entries, err := res.StoreResources(store)
	if err != nil {
		t.Fatalf("StoreResources() error = %v", err)
	}
	if got, err := store.Get(entries[0].SHA256); err != nil || string(got) != "png" {
		t.Errorf("stored blob = %q, %v", got, err)
	}

	b := res.Bundle(bundle.ToolInfo{Name: "test"}, "out.txt", "text/plain")
	if diff := cmp.Diff([]string{"out.txt", "resources/pic.png"}, b.Paths()); diff != "" {
		t.Errorf("bundle paths mismatch (-want +got):\n%s", diff)
	}
	if b.Manifest.RunID != res.RunID || b.Manifest.SourceFormat != "images" {
		t.Errorf("manifest = %+v", b.Manifest)
	}
}
