package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// Version is the current bundle format version.
const Version = "1.0.0"

// ManifestName is the archive entry holding the manifest.
const ManifestName = "manifest.json"

// Manifest describes the contents of a bundle (manifest.json).
type Manifest struct {
	BundleVersion string           `json:"bundle_version"`
	CreatedAt     string           `json:"created_at"`
	Tool          ToolInfo         `json:"tool"`
	RunID         string           `json:"run_id,omitempty"`
	SourceFormat  string           `json:"source_format,omitempty"`
	Output        FileRecord       `json:"output"`
	Resources     []ResourceRecord `json:"resources,omitempty"`
	Loss          *ir.LossReport   `json:"loss_report,omitempty"`
}

// ToolInfo describes the tool that created this bundle.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// FileRecord describes one file in the bundle.
type FileRecord struct {
	Path     string `json:"path"`
	Format   string `json:"format,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size_bytes"`
}

// ResourceRecord describes an exported resource stored in the bundle.
type ResourceRecord struct {
	FileRecord
	ID     ir.ResourceID `json:"id"`
	BLAKE3 string        `json:"blake3"`
}

// ToJSON serializes the manifest with indentation.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest decodes and validates manifest.json.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.BundleVersion == "" {
		return nil, fmt.Errorf("manifest has no bundle_version")
	}
	if m.Output.Path == "" {
		return nil, fmt.Errorf("manifest has no output")
	}
	return &m, nil
}
