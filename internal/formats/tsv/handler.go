// Package tsv provides the embedded handler for tab-separated values. It
// shares the delimited-text reader and writer of package csv.
package tsv

import (
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/csv"
)

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	h := csv.NewHandler("tsv", '\t')
	return &plugins.Format{
		Name:        h.Name,
		Description: "Tab-separated values",
		Extensions:  []string{"tsv", "tab"},
		MIMETypes:   []string{"text/tab-separated-values"},
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
