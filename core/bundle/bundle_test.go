package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
)

func sample() *Bundle {
	b := New(ToolInfo{Name: "rescribe", Version: "test"})
	b.Manifest.RunID = "run-1"
	b.Manifest.Loss = ir.NewLossReport("html", "markdown", nil)
	b.SetOutput("../doc.md", "markdown", "text/markdown", []byte("# Doc\n![x](resources/logo.png)\n"))
	b.AddResource(ir.ExportedResource{ID: "res_0", Name: "logo.png", MimeType: "image/png", Data: []byte("a")})
	b.AddResource(ir.ExportedResource{ID: "res_1", Name: "img/logo.png", MimeType: "image/png", Data: []byte("b")})
	return b
}

func TestAddResourceNames(t *testing.T) {
	b := sample()
	want := []string{"doc.md", "resources/logo-2.png", "resources/logo.png"}
	if diff := cmp.Diff(want, b.Paths()); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if b.Manifest.Resources[1].ID != "res_1" || b.Manifest.Resources[1].Path != "resources/logo-2.png" {
		t.Errorf("record = %+v", b.Manifest.Resources[1])
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionXZ, CompressionGzip} {
		t.Run(string(c), func(t *testing.T) {
			var buf bytes.Buffer
			if err := sample().Write(&buf, c); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if got, err := DetectCompression(buf.Bytes()[:6]); err != nil || got != c {
				t.Errorf("DetectCompression() = %s, %v", got, err)
			}

			b, err := Read(&buf)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if string(b.Output()) != "# Doc\n![x](resources/logo.png)\n" {
				t.Errorf("Output() = %q", b.Output())
			}
			if diff := cmp.Diff(sample().Manifest.Resources, b.Manifest.Resources); diff != "" {
				t.Errorf("resources mismatch (-want +got):\n%s", diff)
			}
			if b.Manifest.Loss == nil || b.Manifest.Loss.LossClass != ir.LossL0 {
				t.Errorf("loss report = %+v", b.Manifest.Loss)
			}
		})
	}
}

func TestPackUnpack(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "out.tar.xz")
	if err := sample().Pack(archive, CompressionXZ); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	dest := filepath.Join(dir, "x")
	if _, err := Unpack(archive, dest); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	for _, p := range []string{"manifest.json", "doc.md", "resources/logo.png", "resources/logo-2.png"} {
		if _, err := os.Stat(filepath.Join(dest, p)); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}
}

func tarGz(t *testing.T, files map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, name := range []string{"manifest.json", "../evil", "doc.md"} {
		data, ok := files[name]
		if !ok {
			continue
		}
		if err := writeEntry(tw, name, []byte(data)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gw.Close()
	return &buf
}

func TestReadRejects(t *testing.T) {
	manifest := `{"bundle_version":"1.0.0","output":{"path":"doc.md","sha256":"` +
		"0000000000000000000000000000000000000000000000000000000000000000" + `"}}`
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"no manifest", map[string]string{"doc.md": "x"}},
		{"digest mismatch", map[string]string{"manifest.json": manifest, "doc.md": "x"}},
		{"missing output", map[string]string{"manifest.json": manifest, "../evil": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tarGz(t, tt.files))
			if !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Read() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := Read(bytes.NewReader([]byte("plain text"))); !stderrors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Read(text) error = %v, want ErrUnsupported", err)
	}
}

func TestCleanEntry(t *testing.T) {
	for in, want := range map[string]string{"a/b": "a/b", "./a": "a", "a/../b": "b"} {
		if got, ok := cleanEntry(in); !ok || got != want {
			t.Errorf("cleanEntry(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"../x", "/etc/passwd", ".", "a/../../x"} {
		if _, ok := cleanEntry(in); ok {
			t.Errorf("cleanEntry(%q) accepted", in)
		}
	}
}
