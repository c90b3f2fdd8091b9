package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/bundle"
	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/core/selfcheck"
	"github.com/FocuswithJustin/Rescribe/core/transforms"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
	"github.com/FocuswithJustin/Rescribe/internal/validation"
)

// ConvertCmd converts a document to another format.
type ConvertCmd struct {
	Input  string `arg:"" help:"Input file, or - for stdin"`
	Output string `short:"o" help:"Output file, or - for stdout (default: stdout unless --bundle is set)"`
	From   string `help:"Source format (default: by extension, then by content)"`
	To     string `help:"Target format (default: by output extension)"`

	Transform          []string          `help:"Transform to apply, in order (e.g. shift-headings=1, strip-empty)"`
	PreserveSourceInfo bool              `name:"preserve-source-info" help:"Keep format-specific source details for a same-format round trip"`
	EmbedResources     bool              `name:"embed-resources" help:"Embed referenced images as document resources"`
	Pretty             bool              `help:"Pretty-print output where the format supports it"`
	ReadOpt            map[string]string `name:"read-opt" help:"Reader option key=value for the source format"`
	WriteOpt           map[string]string `name:"write-opt" help:"Writer option key=value for the target format"`
	MaxLoss            string            `name:"max-loss" help:"Fail without writing output when the loss class exceeds this (L0-L4)"`

	ResourcesDir string `name:"resources-dir" help:"Write exported resources into this directory"`
	Bundle       string `help:"Also pack output, resources and loss report into a .tar.xz or .tar.gz bundle"`
}

func (c *ConvertCmd) Run(e *env) error {
	req, err := c.request(e)
	if err != nil {
		return err
	}
	var budget *selfcheck.LossBudget
	if c.MaxLoss != "" {
		class, err := selfcheck.ParseLossClass(c.MaxLoss)
		if err != nil {
			return err
		}
		budget = selfcheck.NewLossBudget(class)
	}

	res, err := convert.New(e.Registry).Convert(context.Background(), req)
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		e.warnf("%s", w)
	}
	if budget != nil {
		if err := budget.Check(res.Loss).Err(); err != nil {
			return err
		}
	}

	switch {
	case c.Output == "-" || c.Output == "" && c.Bundle == "":
		if _, err := e.Stdout.Write(res.Output); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	case c.Output != "":
		if err := os.WriteFile(c.Output, res.Output, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if c.ResourcesDir != "" {
		if err := writeResources(c.ResourcesDir, res.Resources); err != nil {
			return err
		}
	}

	if c.Bundle != "" {
		if err := c.writeBundle(e, res); err != nil {
			return err
		}
	}

	logging.Info("converted", "input", c.Input, "from", res.From, "to", res.To,
		"loss_class", res.LossClass(), "warnings", len(res.Warnings))
	return nil
}

// outputSet reports whether -o names a file.
func (c *ConvertCmd) outputSet() bool {
	return c.Output != "" && c.Output != "-"
}

func (c *ConvertCmd) request(e *env) (convert.Request, error) {
	input, inputPath, err := readInput(c.Input, e.Stdin)
	if err != nil {
		return convert.Request{}, err
	}

	outputPath := ""
	if c.outputSet() {
		if err := validation.ValidatePath(c.Output); err != nil {
			return convert.Request{}, fmt.Errorf("invalid output path: %w", err)
		}
		outputPath = c.Output
	}
	if c.To == "" && outputPath == "" {
		return convert.Request{}, fmt.Errorf("--to is required without an output file name")
	}

	req := convert.Request{
		Input:      input,
		InputPath:  inputPath,
		OutputPath: outputPath,
		From:       c.From,
		To:         c.To,
		Parse: plugins.ParseOptions{
			PreserveSourceInfo: c.PreserveSourceInfo,
			EmbedResources:     c.EmbedResources,
			Extra:              c.ReadOpt,
		},
		Emit: plugins.EmitOptions{
			Pretty:        c.Pretty,
			UseSourceInfo: c.PreserveSourceInfo,
			Extra:         c.emitOptions(),
		},
	}
	if len(c.Transform) > 0 {
		pipeline, err := transforms.ParseAll(c.Transform)
		if err != nil {
			return req, err
		}
		req.Transforms = []plugins.Transformer{pipeline}
	}
	return req, nil
}

// emitOptions adds the "resource_dir" writer option when resources are
// written next to the output, so references point at the exported files.
func (c *ConvertCmd) emitOptions() map[string]string {
	if _, ok := c.WriteOpt["resource_dir"]; ok || c.ResourcesDir == "" && c.Bundle == "" {
		return c.WriteOpt
	}
	extra := maps.Clone(c.WriteOpt)
	if extra == nil {
		extra = make(map[string]string)
	}
	dir := bundle.ResourceDir
	if c.Bundle == "" {
		dir = c.ResourcesDir
		if c.outputSet() {
			if rel, err := filepath.Rel(filepath.Dir(c.Output), c.ResourcesDir); err == nil {
				dir = rel
			}
		}
	}
	extra["resource_dir"] = filepath.ToSlash(dir) + "/"
	return extra
}

// readInput reads a file, or stdin for "-". The returned path guides
// format detection and is empty for stdin.
func readInput(path string, stdin io.Reader) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, "", nil
	}

	if err := validation.ValidatePath(path); err != nil {
		return nil, "", fmt.Errorf("invalid input path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read input: %w", err)
	}
	return data, path, nil
}

// writeResources writes each exported resource into dir under a sanitized
// file name. Clashing names get a numeric suffix.
func writeResources(dir string, resources []ir.ExportedResource) error {
	if len(resources) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create resources directory: %w", err)
	}

	used := make(map[string]bool)
	for _, r := range resources {
		name, err := validation.SanitizeFilename(r.FileName())
		if err != nil {
			name = string(r.ID)
		}
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		used[name] = true
		rel, err := validation.SanitizePath(dir, name)
		if err != nil {
			return fmt.Errorf("resource %s: %w", r.ID, err)
		}
		path := filepath.Join(dir, rel)
		if err := os.WriteFile(path, r.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write resource %s: %w", r.ID, err)
		}
		logging.Debug("resource written", "id", r.ID, "path", path, "bytes", len(r.Data))
	}
	return nil
}

func (c *ConvertCmd) writeBundle(e *env, res *convert.Result) error {
	mimeType := ""
	outputName := "output"
	if f, err := e.Registry.Lookup(res.To); err == nil {
		mimeType = f.MIMEType()
		if len(f.Extensions) > 0 {
			outputName += "." + f.Extensions[0]
		}
	}
	if c.outputSet() {
		outputName = filepath.Base(c.Output)
	}

	b := res.Bundle(bundle.ToolInfo{Name: "rescribe", Version: version}, outputName, mimeType)
	if err := b.Pack(c.Bundle, bundleCompression(c.Bundle)); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	logging.Info("bundle written", "path", c.Bundle, "files", len(b.Paths()))
	return nil
}

func bundleCompression(path string) bundle.Compression {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return bundle.CompressionGzip
	}
	return bundle.CompressionXZ
}
