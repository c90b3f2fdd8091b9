package plugins

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
)

// Format describes a registered format handler.
type Format struct {
	// Name is the canonical lowercase identifier (e.g., "csv").
	Name string
	// Description is a one-line summary for listings.
	Description string
	// Aliases are alternative names accepted by Lookup (e.g., "txt").
	Aliases []string
	// Extensions are file extensions without the dot (e.g., "csv").
	Extensions []string
	// MIMETypes are the media types the format is served as.
	MIMETypes []string
	// Binary marks formats whose output is not text.
	Binary bool
	// Version is the handler version.
	Version string
	// MinHostVersion is the minimum host version the handler requires.
	MinHostVersion string
	// Reader parses the format; nil for write-only formats.
	Reader Reader
	// Writer emits the format; nil for read-only formats.
	Writer Writer
	// Sniff reports whether data looks like this format. Optional.
	Sniff func(data []byte) bool
}

// CanRead reports whether the format has a reader.
func (f *Format) CanRead() bool { return f.Reader != nil }

// CanWrite reports whether the format has a writer.
func (f *Format) CanWrite() bool { return f.Writer != nil }

// MIMEType returns the primary media type.
func (f *Format) MIMEType() string {
	if len(f.MIMETypes) == 0 {
		if f.Binary {
			return "application/octet-stream"
		}
		return "text/plain; charset=utf-8"
	}
	return f.MIMETypes[0]
}

// Registry maps format names and extensions to handlers. It is safe for
// concurrent use; registration normally happens once from init().
type Registry struct {
	mu      sync.RWMutex
	formats map[string]*Format
	names   map[string]string // alias -> name
	exts    map[string]string // extension -> name
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]*Format),
		names:   make(map[string]string),
		exts:    make(map[string]string),
	}
}

// Default is the process-wide registry populated by built-in formats.
var Default = NewRegistry()

// RegisterFormat registers f with the Default registry, panicking on an
// invalid or incompatible handler. It is meant to be called from init().
func RegisterFormat(f *Format) {
	if err := Default.Register(f); err != nil {
		panic(err)
	}
	logging.Debug("format registered", "format", f.Name, "read", f.CanRead(), "write", f.CanWrite())
}

// Register adds f. A later registration under the same name replaces the
// earlier one.
func (r *Registry) Register(f *Format) error {
	if f == nil || f.Name == "" {
		return apperrors.NewValidation("name", "format name is required")
	}
	if f.Reader == nil && f.Writer == nil {
		return apperrors.NewValidation("format", fmt.Sprintf("%s has neither reader nor writer", f.Name))
	}
	if err := CheckFormatCompatibility(f, HostVersion); err != nil {
		return err
	}

	name := strings.ToLower(f.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[name] = f
	r.names[name] = name
	for _, a := range f.Aliases {
		r.names[strings.ToLower(a)] = name
	}
	for _, e := range f.Extensions {
		ext := strings.ToLower(strings.TrimPrefix(e, "."))
		if _, taken := r.exts[ext]; !taken {
			r.exts[ext] = name
		}
	}
	return nil
}

// Lookup returns the format registered under name or one of its aliases.
func (r *Registry) Lookup(name string) (*Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.names[strings.ToLower(name)]; ok {
		return r.formats[canonical], nil
	}
	return nil, apperrors.NewNotFound("format", name)
}

// ByExtension returns the format claiming the extension of path.
func (r *Registry) ByExtension(path string) (*Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.exts[ext]
	if !ok {
		return nil, false
	}
	return r.formats[name], true
}

// Resolve picks a format from an explicit name, falling back to the
// extension of path. It fails with ErrCannotDetermineFormat when neither
// resolves.
func (r *Registry) Resolve(explicit, path string) (*Format, error) {
	if explicit != "" {
		return r.Lookup(explicit)
	}
	if f, ok := r.ByExtension(path); ok {
		return f, nil
	}
	return nil, apperrors.ErrCannotDetermineFormat
}

// Sniff returns the first readable format, in name order, whose Sniff
// function accepts data.
func (r *Registry) Sniff(data []byte) (*Format, bool) {
	for _, f := range r.List() {
		if f.Sniff != nil && f.CanRead() && f.Sniff(data) {
			return f, true
		}
	}
	return nil, false
}

// ResolveReader resolves a format that can read.
func (r *Registry) ResolveReader(explicit, path string) (*Format, error) {
	f, err := r.Resolve(explicit, path)
	if err != nil {
		return nil, err
	}
	return readable(f)
}

// ResolveInput is ResolveReader with content sniffing as the last resort.
func (r *Registry) ResolveInput(explicit, path string, data []byte) (*Format, error) {
	f, err := r.Resolve(explicit, path)
	if apperrors.Is(err, apperrors.ErrCannotDetermineFormat) {
		if sniffed, ok := r.Sniff(data); ok {
			return sniffed, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return readable(f)
}

func readable(f *Format) (*Format, error) {
	if !f.CanRead() {
		return nil, apperrors.NewUnsupported("format", fmt.Sprintf("%s cannot be read", f.Name))
	}
	return f, nil
}

// ResolveWriter resolves a format that can write.
func (r *Registry) ResolveWriter(explicit, path string) (*Format, error) {
	f, err := r.Resolve(explicit, path)
	if err != nil {
		return nil, err
	}
	if !f.CanWrite() {
		return nil, apperrors.NewUnsupported("format", fmt.Sprintf("%s cannot be written", f.Name))
	}
	return f, nil
}

// List returns every registered format sorted by name.
func (r *Registry) List() []*Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Format, 0, len(r.formats))
	for _, f := range r.formats {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b *Format) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Has reports whether name resolves to a format.
func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}
