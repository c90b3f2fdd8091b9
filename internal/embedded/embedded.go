// Package embedded registers every built-in format handler with
// plugins.Default. Import it for its side effects:
//
//	import _ "github.com/FocuswithJustin/Rescribe/internal/embedded"
package embedded

import (
	"github.com/FocuswithJustin/Rescribe/core/plugins"

	// Format handlers
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/ansi"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/csv"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/html"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/markdown"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/native"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/opml"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/sqlite"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/tsv"
	_ "github.com/FocuswithJustin/Rescribe/internal/formats/txt"
)

// Formats lists the canonical names of the built-in formats.
var Formats = []string{"ansi", "csv", "html", "markdown", "native", "opml", "plaintext", "sqlite", "tsv"}

// IsInitialized reports whether every built-in format is registered.
func IsInitialized() bool {
	for _, name := range Formats {
		if !plugins.Default.Has(name) {
			return false
		}
	}
	return true
}

// FormatCount returns the number of formats in the default registry.
func FormatCount() int {
	return len(plugins.Default.List())
}
