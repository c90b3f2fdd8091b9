// Package bundle packs a conversion result into a single archive: the
// primary output, every resource the writer exported next to it, and a
// manifest.json recording digests and the loss report.
//
// Archives are tar streams compressed with XZ (default) or gzip.
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/Rescribe/core/cas"
	"github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// Compression specifies the compression algorithm for bundle archives.
type Compression string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ Compression = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip Compression = "gzip"
)

// MaxEntrySize bounds a single archive entry when reading.
const MaxEntrySize = 1 << 30

// ResourceDir is the archive directory holding exported resources.
const ResourceDir = "resources"

// Bundle is an in-memory bundle: the manifest plus file contents by path.
type Bundle struct {
	Manifest *Manifest
	files    map[string][]byte
}

// New returns an empty bundle created by tool.
func New(tool ToolInfo) *Bundle {
	return &Bundle{
		Manifest: &Manifest{
			BundleVersion: Version,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			Tool:          tool,
		},
		files: make(map[string][]byte),
	}
}

// SetOutput stores the primary output under name.
func (b *Bundle) SetOutput(name, format, mimeType string, data []byte) {
	name = safeName(name, "output")
	if old := b.Manifest.Output.Path; old != "" {
		delete(b.files, old)
	}
	b.files[name] = data
	b.Manifest.Output = FileRecord{
		Path:     name,
		Format:   format,
		MimeType: mimeType,
		SHA256:   cas.Hash(data),
		Size:     int64(len(data)),
	}
}

// AddResource stores an exported resource under resources/ and returns its
// archive path. Clashing file names get a numeric suffix.
func (b *Bundle) AddResource(r ir.ExportedResource) string {
	name := r.FileName()
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	p := path.Join(ResourceDir, name)
	for n := 2; b.files[p] != nil; n++ {
		p = path.Join(ResourceDir, stem+"-"+strconv.Itoa(n)+ext)
	}
	b.files[p] = r.Data
	b.Manifest.Resources = append(b.Manifest.Resources, ResourceRecord{
		FileRecord: FileRecord{
			Path:     p,
			MimeType: r.MimeType,
			SHA256:   cas.Hash(r.Data),
			Size:     int64(len(r.Data)),
		},
		ID:     r.ID,
		BLAKE3: ir.ResourceDigest(ir.Resource{Data: r.Data}),
	})
	return p
}

// Output returns the primary output bytes.
func (b *Bundle) Output() []byte {
	return b.files[b.Manifest.Output.Path]
}

// File returns the content stored at an archive path.
func (b *Bundle) File(name string) ([]byte, bool) {
	data, ok := b.files[name]
	return data, ok
}

// Paths lists the archive paths of all stored files, sorted.
func (b *Bundle) Paths() []string {
	out := make([]string, 0, len(b.files))
	for p := range b.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Write writes the bundle as a compressed tar stream.
func (b *Bundle) Write(w io.Writer, compression Compression) error {
	var cw io.WriteCloser
	switch compression {
	case CompressionGzip:
		gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		cw = gw
	case CompressionXZ, "":
		xw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
		cw = xw
	default:
		return errors.NewUnsupported("compression", string(compression))
	}

	tw := tar.NewWriter(cw)
	manifest, err := b.Manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	// manifest.json goes first so readers can stream the rest.
	if err := writeEntry(tw, ManifestName, manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	for _, p := range b.Paths() {
		if err := writeEntry(tw, p, b.files[p]); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return cw.Close()
}

// Pack writes the bundle to archivePath.
func (b *Bundle) Pack(archivePath string, compression Compression) error {
	file, err := os.Create(archivePath)
	if err != nil {
		return errors.NewIO("create", archivePath, err)
	}
	if err := b.Write(file, compression); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// DetectCompression identifies the compression from leading magic bytes.
func DetectCompression(magic []byte) (Compression, error) {
	if len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	if bytes.HasPrefix(magic, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
		return CompressionXZ, nil
	}
	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Read decodes a bundle archive, auto-detecting compression, and verifies
// every file against the digests in its manifest.
func Read(r io.Reader) (*Bundle, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(6)
	compression, err := DetectCompression(magic)
	if err != nil {
		return nil, err
	}

	var dr io.Reader
	switch compression {
	case CompressionGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gr.Close()
		dr = gr
	default:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		dr = xr
	}

	b := &Bundle{files: make(map[string][]byte)}
	tr := tar.NewReader(dr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := cleanEntry(header.Name)
		if !ok {
			continue // Skip potentially malicious paths
		}
		if header.Size > MaxEntrySize {
			return nil, errors.NewValidation("archive", fmt.Sprintf("%s exceeds %d bytes", name, MaxEntrySize))
		}
		data, err := io.ReadAll(io.LimitReader(tr, MaxEntrySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if name == ManifestName {
			if b.Manifest, err = ParseManifest(data); err != nil {
				return nil, err
			}
			continue
		}
		b.files[name] = data
	}
	if b.Manifest == nil {
		return nil, errors.NewValidation("archive", "archive does not contain manifest.json")
	}
	if err := b.verify(); err != nil {
		return nil, err
	}
	return b, nil
}

// Open reads the bundle archive at archivePath.
func Open(archivePath string) (*Bundle, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.NewIO("open", archivePath, err)
	}
	defer file.Close()
	return Read(file)
}

// Extract writes the manifest and every file below destDir.
func (b *Bundle) Extract(destDir string) error {
	manifest, err := b.Manifest.ToJSON()
	if err != nil {
		return err
	}
	write := func(name string, data []byte) error {
		dest := filepath.Join(destDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.NewIO("create directory", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return errors.NewIO("write", dest, err)
		}
		return nil
	}
	if err := write(ManifestName, manifest); err != nil {
		return err
	}
	for _, p := range b.Paths() {
		if err := write(p, b.files[p]); err != nil {
			return err
		}
	}
	return nil
}

// Unpack reads an archive and extracts it to destDir.
func Unpack(archivePath, destDir string) (*Bundle, error) {
	b, err := Open(archivePath)
	if err != nil {
		return nil, err
	}
	if err := b.Extract(destDir); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) verify() error {
	records := []FileRecord{b.Manifest.Output}
	for _, r := range b.Manifest.Resources {
		records = append(records, r.FileRecord)
	}
	for _, rec := range records {
		data, ok := b.files[rec.Path]
		if !ok {
			return errors.NewValidation("archive", fmt.Sprintf("%s listed in manifest but missing", rec.Path))
		}
		if cas.Hash(data) != rec.SHA256 {
			return errors.NewValidation("archive", fmt.Sprintf("%s: %v", rec.Path, cas.ErrCorrupt))
		}
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// cleanEntry normalizes an archive path and rejects absolute paths and
// paths escaping the archive root.
func cleanEntry(name string) (string, bool) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

// safeName reduces an output name to a bare file name.
func safeName(name, def string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == ManifestName {
		return def
	}
	return name
}
