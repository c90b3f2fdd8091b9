// Package html provides the embedded handler for HTML documents.
//
// The reader builds the tree with golang.org/x/net/html and maps elements
// onto standard node kinds; elements with no counterpart are unwrapped and
// reported. The writer produces a standalone HTML5 page, or only the body
// content when the "fragment" option is set.
package html

import (
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// FormatName is the registered format name.
const FormatName = "html"

// Source metadata keys recorded when ParseOptions.PreserveSourceInfo is set.
const (
	SourceDoctype  = "html:doctype"
	SourceFragment = "html:fragment"
)

// MaxDepth bounds element nesting. Deeper content is flattened to text.
const MaxDepth = 256

// Handler implements the HTML reader and writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "HTML5 documents and fragments",
		Aliases:     []string{"htm", "xhtml"},
		Extensions:  []string{"html", "htm", "xhtml"},
		MIMETypes:   []string{"text/html", "application/xhtml+xml"},
		Version:     "1.0.0",
		Reader:      &Handler{},
		Writer:      &Handler{},
		Sniff: base.Sniffer(base.SniffConfig{
			ContentMarkers: []string{"<html"},
			FoldCase:       true,
		}),
	}
}

// Register registers this format with the default registry.
func Register() {
	plugins.RegisterFormat(Manifest())
}

func init() {
	Register()
}
