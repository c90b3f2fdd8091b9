// Package ansi provides the embedded handler for text annotated with ANSI
// escape sequences, as printed by terminals.
//
// The reader understands SGR styling (bold, italic, underline, strike,
// foreground colors) and OSC 8 hyperlinks; other control sequences are
// dropped with a warning. The writer renders any document for a terminal.
package ansi

import (
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// FormatName is the registered format name.
const FormatName = "ansi"

// SourceParagraphs is the source metadata key holding the paragraph count.
const SourceParagraphs = "ansi:paragraphs"

// Handler implements the ANSI reader and writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "Terminal text with ANSI escape sequences",
		Aliases:     []string{"terminal"},
		Extensions:  []string{"ans", "ansi"},
		MIMETypes:   []string{"text/x-ansi"},
		Version:     "1.0.0",
		Reader:      &Handler{},
		Writer:      &Handler{},
		Sniff:       base.Sniffer(base.SniffConfig{ContentMarkers: []string{"\x1b["}}),
	}
}

// Register registers this format with the default registry.
func Register() {
	plugins.RegisterFormat(Manifest())
}

func init() {
	Register()
}
