package embedded_test

import (
	"testing"

	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/embedded"
)

// TestFormatRegistrations verifies that importing the package registers
// every built-in format with a usable handler.
func TestFormatRegistrations(t *testing.T) {
	readOnly := map[string]bool{}
	writeOnly := map[string]bool{"markdown": true}

	for _, name := range embedded.Formats {
		t.Run(name, func(t *testing.T) {
			f, err := plugins.Default.Lookup(name)
			if err != nil {
				t.Fatalf("format %q not registered: %v", name, err)
			}
			if f.CanRead() == writeOnly[name] {
				t.Errorf("%s CanRead() = %v", name, f.CanRead())
			}
			if f.CanWrite() == readOnly[name] {
				t.Errorf("%s CanWrite() = %v", name, f.CanWrite())
			}
			if len(f.Extensions) == 0 {
				t.Errorf("%s has no extensions", name)
			}
		})
	}
}

func TestAliasesAndExtensions(t *testing.T) {
	tests := []struct {
		explicit, path, want string
	}{
		{"txt", "", "plaintext"},
		{"md", "", "markdown"},
		{"ir", "", "native"},
		{"", "notes.TSV", "tsv"},
		{"", "page.htm", "html"},
		{"", "data.sqlite3", "sqlite"},
		{"", "feeds.opml", "opml"},
	}
	for _, tt := range tests {
		f, err := plugins.Default.Resolve(tt.explicit, tt.path)
		if err != nil {
			t.Errorf("Resolve(%q, %q) error = %v", tt.explicit, tt.path, err)
			continue
		}
		if f.Name != tt.want {
			t.Errorf("Resolve(%q, %q) = %s, want %s", tt.explicit, tt.path, f.Name, tt.want)
		}
	}
}

func TestSniff(t *testing.T) {
	tests := map[string]string{
		"SQLite format 3\x00rest":            "sqlite",
		"Document {\n  content: document\n}": "native",
		"<!DOCTYPE html><html><body></body></html>": "html",
	}
	for input, want := range tests {
		f, ok := plugins.Default.Sniff([]byte(input))
		if !ok || f.Name != want {
			got := "<none>"
			if ok {
				got = f.Name
			}
			t.Errorf("Sniff(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestIsInitialized(t *testing.T) {
	if !embedded.IsInitialized() {
		t.Error("IsInitialized() = false after import")
	}
	if n := embedded.FormatCount(); n < len(embedded.Formats) {
		t.Errorf("FormatCount() = %d, want at least %d", n, len(embedded.Formats))
	}
}
