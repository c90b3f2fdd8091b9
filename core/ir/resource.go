package ir

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ResourceID identifies an embedded resource. Identifiers are opaque and
// unique within the process that generated them.
type ResourceID string

// String returns the identifier text.
func (id ResourceID) String() string { return string(id) }

// IDGenerator hands out resource identifiers. Implementations must never
// return the same identifier twice and must be safe for concurrent use.
type IDGenerator interface {
	Next() ResourceID
}

// Counter is a monotonic IDGenerator producing "res_0", "res_1", ...
// The zero value is ready to use.
type Counter struct {
	n      atomic.Uint64
	prefix string
}

// NewCounter returns a Counter producing ids with the given prefix.
// An empty prefix means "res_".
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

// Next returns a fresh identifier.
func (c *Counter) Next() ResourceID {
	n := c.n.Add(1) - 1
	prefix := c.prefix
	if prefix == "" {
		prefix = "res_"
	}
	return ResourceID(prefix + strconv.FormatUint(n, 10))
}

// DefaultIDs is the process-wide identifier source used by NewDocument.
var DefaultIDs IDGenerator = &Counter{}

// Resource is binary data owned by a document, such as an image or font.
// Nodes reference resources through the "resource" property.
type Resource struct {
	Name     string
	MimeType string
	Data     []byte
	Metadata Properties
}

// NewResource returns a resource. It is not assigned an identifier until it
// is embedded in a document.
func NewResource(mimeType string, data []byte) Resource {
	return Resource{MimeType: mimeType, Data: data}
}

// WithName returns a copy of r carrying name.
func (r Resource) WithName(name string) Resource {
	r.Name = name
	return r
}

// Size returns the length of the payload.
func (r Resource) Size() int { return len(r.Data) }

// IsImage reports whether the MIME type is an image type.
func (r Resource) IsImage() bool {
	return strings.HasPrefix(r.MimeType, "image/")
}

// Clone returns a deep copy of r.
func (r Resource) Clone() Resource {
	r.Data = append([]byte(nil), r.Data...)
	r.Metadata = r.Metadata.Clone()
	return r
}

// Extension returns a file extension (with dot) for the MIME type, or ".bin".
func (r Resource) Extension() string {
	if ext, ok := mimeExtensions[r.MimeType]; ok {
		return ext
	}
	return ".bin"
}

var mimeExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"image/tiff":      ".tiff",
	"image/svg+xml":   ".svg",
	"text/plain":      ".txt",
	"text/css":        ".css",
	"font/ttf":        ".ttf",
	"font/otf":        ".otf",
	"font/woff":       ".woff",
	"font/woff2":      ".woff2",
	"application/pdf": ".pdf",
}
