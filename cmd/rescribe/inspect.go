package main

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/Rescribe/core/bundle"
	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/native"
)

// InspectCmd summarizes a document, or prints the manifest of a bundle.
type InspectCmd struct {
	Input   string            `arg:"" help:"Input file or bundle archive, or - for stdin"`
	From    string            `help:"Source format (default: by extension, then by content)"`
	IR      bool              `name:"ir" help:"Dump the parsed document in the native format"`
	ReadOpt map[string]string `name:"read-opt" help:"Reader option key=value"`
}

func (c *InspectCmd) Run(e *env) error {
	data, path, err := readInput(c.Input, e.Stdin)
	if err != nil {
		return err
	}

	if _, err := bundle.DetectCompression(data); err == nil && c.From == "" {
		return c.inspectBundle(e, data)
	}

	f, err := e.Registry.ResolveInput(c.From, path, data)
	if err != nil {
		return err
	}
	conv := convert.New(e.Registry)
	parsed, err := conv.Read(data, f.Name, plugins.ParseOptions{Extra: c.ReadOpt})
	if err != nil {
		return err
	}
	doc := parsed.Value

	if c.IR {
		out, err := conv.Write(doc, native.FormatName, plugins.EmitOptions{Pretty: true})
		if err != nil {
			return err
		}
		_, err = e.Stdout.Write(out.Value)
		return err
	}

	tw := tabwriter.NewWriter(e.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "format:\t%s\n", f.Name)
	if title := doc.Title(); title != "" {
		fmt.Fprintf(tw, "title:\t%s\n", title)
	}
	fmt.Fprintf(tw, "nodes:\t%d\n", ir.Count(doc.Content))
	fmt.Fprintf(tw, "depth:\t%d\n", ir.Depth(doc.Content))
	fmt.Fprintf(tw, "kinds:\t%s\n", kindSummary(doc.Content))
	fmt.Fprintf(tw, "resources:\t%d\n", len(doc.Resources))
	if keys := doc.Metadata.Keys(); len(keys) > 0 {
		fmt.Fprintf(tw, "metadata:\t%s\n", strings.Join(keys, ", "))
	}
	fmt.Fprintf(tw, "loss class:\t%s\n", parsed.LossClass())
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, w := range parsed.Warnings {
		fmt.Fprintf(e.Stdout, "  %s\n", w)
	}
	return nil
}

func (c *InspectCmd) inspectBundle(e *env, data []byte) error {
	b, err := bundle.Read(bytes.NewReader(data))
	if err != nil {
		return err
	}
	out, err := b.Manifest.ToJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.Stdout, "%s\n", out)
	return err
}

// kindSummary renders node counts per kind, most frequent first.
func kindSummary(root ir.Node) string {
	counts := make(map[ir.Kind]int)
	ir.Walk(root, func(n ir.Node) bool {
		counts[n.Kind]++
		return true
	})
	kinds := make([]ir.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
