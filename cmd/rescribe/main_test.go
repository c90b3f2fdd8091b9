package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/Rescribe/core/bundle"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

const pngDataURI = "data:image/png;base64,iVBORw0KGgo="

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &env{
		Stdin:    strings.NewReader(stdin),
		Stdout:   &out,
		Stderr:   &errOut,
		Registry: plugins.Default,
	})
	return code, out.String(), errOut.String()
}

func TestConvertStdin(t *testing.T) {
	code, stdout, stderr := runCLI(t, "name,qty\napple,3\n", "convert", "-", "--from", "csv", "--to", "html")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"<table", "apple", "3"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConvertPrintsWarnings(t *testing.T) {
	code, stdout, stderr := runCLI(t, "hello\n", "convert", "-", "--from", "plaintext", "--to", "csv")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", stdout, "hello\n")
	}
	if !strings.Contains(stderr, "warning: [major] simplified(document)") {
		t.Errorf("stderr missing warning:\n%s", stderr)
	}
}

func TestConvertTransforms(t *testing.T) {
	code, stdout, stderr := runCLI(t, "a,b\n", "convert", "-", "--from", "csv", "--to", "csv", "--transform", "strip-empty")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if stdout != "a,b\n" {
		t.Errorf("stdout = %q", stdout)
	}

	code, _, stderr = runCLI(t, "a,b\n", "convert", "-", "--from", "csv", "--to", "csv", "--transform", "no-such")
	if code != 1 || !strings.Contains(stderr, "error:") {
		t.Errorf("unknown transform: code = %d, stderr = %q", code, stderr)
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown target", []string{"convert", "-", "--from", "csv", "--to", "nope"}, "format not found: nope"},
		{"unknown source", []string{"convert", "-", "--from", "nope", "--to", "csv"}, "format not found: nope"},
		{"no target", []string{"convert", "-", "--from", "csv"}, "--to is required"},
		{"missing file", []string{"convert", "does-not-exist.csv", "--to", "html"}, "failed to read input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, "a,b\n", tt.args...)
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if stdout != "" {
				t.Errorf("unexpected stdout %q", stdout)
			}
			if !strings.Contains(stderr, "error: ") || !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.want)
			}
		})
	}
}

func TestConvertFileOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.tsv")
	if err := os.WriteFile(in, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, "", "convert", in, "-o", out)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("stdout should be empty with -o, got %q", stdout)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a\tb\n1\t2\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConvertReaderAndWriterOptions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		args  []string
		want  string
	}{
		{"reader option stays with the reader", "a|b\n1|2\n", []string{"--from", "csv", "--to", "tsv", "--read-opt", "delimiter=|"}, "a\tb\n1\t2\n"},
		{"writer option stays with the writer", "a\tb\n1\t2\n", []string{"--from", "tsv", "--to", "csv", "--write-opt", "delimiter=|"}, "a|b\n1|2\n"},
		{"both", "a|b\n", []string{"--from", "csv", "--to", "csv", "--read-opt", "delimiter=|", "--write-opt", "delimiter=+"}, "a+b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.input, append([]string{"convert", "-"}, tt.args...)...)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr: %s", code, stderr)
			}
			if stdout != tt.want {
				t.Errorf("stdout = %q, want %q", stdout, tt.want)
			}
		})
	}
}

func TestConvertResourcesDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "page.html")
	resDir := filepath.Join(dir, "img")
	input := `<p><img src="` + pngDataURI + `" alt="logo"></p>`

	code, _, stderr := runCLI(t, input, "convert", "-", "--from", "html", "-o", out,
		"--embed-resources", "--resources-dir", resDir)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}

	files, err := filepath.Glob(filepath.Join(resDir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("exported files = %v, want one png", files)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("resource content = %q", data)
	}

	page, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := `src="img/` + filepath.Base(files[0]) + `"`; !strings.Contains(string(page), want) {
		t.Errorf("page does not reference %s:\n%s", want, page)
	}
}

func TestConvertBundle(t *testing.T) {
	for _, name := range []string{"out.tar.xz", "out.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			input := `<p>Hi <img src="` + pngDataURI + `"></p>`

			code, stdout, stderr := runCLI(t, input, "convert", "-", "--from", "html", "--to", "html",
				"--embed-resources", "--bundle", path)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr: %s", code, stderr)
			}
			if stdout != "" {
				t.Errorf("bundle without -o should not write stdout, got %q", stdout)
			}

			b, err := bundle.Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if b.Manifest.Output.Path != "output.html" {
				t.Errorf("output path = %q", b.Manifest.Output.Path)
			}
			if b.Manifest.Tool.Name != "rescribe" || b.Manifest.Tool.Version != version {
				t.Errorf("tool = %+v", b.Manifest.Tool)
			}
			if len(b.Manifest.Resources) != 1 {
				t.Fatalf("resources = %+v", b.Manifest.Resources)
			}
			res := b.Manifest.Resources[0]
			if !strings.HasPrefix(res.Path, "resources/") {
				t.Errorf("resource path = %q", res.Path)
			}
			if !strings.Contains(string(b.Output()), `src="`+res.Path+`"`) {
				t.Errorf("output does not reference %s:\n%s", res.Path, b.Output())
			}
		})
	}
}

func TestFormats(t *testing.T) {
	code, stdout, stderr := runCLI(t, "", "formats")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "NAME") {
		t.Errorf("missing header:\n%s", stdout)
	}
	for _, want := range []string{"csv", "tsv", "plaintext", "ansi", "html", "markdown"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = runCLI(t, "", "formats", "--json")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var infos []formatInfo
	if err := json.Unmarshal([]byte(stdout), &infos); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	byName := make(map[string]formatInfo)
	for _, f := range infos {
		byName[f.Name] = f
	}
	if f := byName["csv"]; !f.Read || !f.Write {
		t.Errorf("csv = %+v, want read and write", f)
	}
	if f := byName["markdown"]; f.Read || !f.Write {
		t.Errorf("markdown = %+v, want write only", f)
	}
}

func TestMode(t *testing.T) {
	tests := []struct {
		read, write bool
		want        string
	}{
		{true, true, "rw"},
		{true, false, "r-"},
		{false, true, "-w"},
		{false, false, "--"},
	}
	for _, tt := range tests {
		if got := mode(tt.read, tt.write); got != tt.want {
			t.Errorf("mode(%v, %v) = %q, want %q", tt.read, tt.write, got, tt.want)
		}
	}
}

func TestInspectDocument(t *testing.T) {
	code, stdout, stderr := runCLI(t, "a,b\n1,2\n", "inspect", "-", "--from", "csv")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"format:", "csv", "nodes:", "table_cell=4", "loss class:", "L0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("summary missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = runCLI(t, "a,b\n", "inspect", "-", "--from", "csv", "--ir")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout, "Document {") {
		t.Errorf("--ir output:\n%s", stdout)
	}
}

func TestInspectBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.tar.xz")
	if code, _, stderr := runCLI(t, "a,b\n", "convert", "-", "--from", "csv", "--to", "tsv", "--bundle", path); code != 0 {
		t.Fatalf("convert exit code = %d, stderr: %s", code, stderr)
	}

	code, stdout, stderr := runCLI(t, "", "inspect", path)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	m, err := bundle.ParseManifest([]byte(stdout))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v\n%s", err, stdout)
	}
	if m.SourceFormat != "csv" || m.Output.Format != "tsv" {
		t.Errorf("manifest = %+v", m)
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if stdout != "rescribe version "+version+"\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	code, _, stderr := runCLI(t, "", "--log-level", "loud", "version")
	if code == 0 {
		t.Error("expected a non-zero exit code")
	}
	if stderr == "" {
		t.Error("expected an error message")
	}
}

func TestServeRejectsShortAPIKey(t *testing.T) {
	code, _, stderr := runCLI(t, "", "serve", "--api-key", "short")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "API key must be at least 16 characters") || !strings.Contains(stderr, "RESCRIBE_API_KEY") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestConvertMaxLoss(t *testing.T) {
	code, stdout, stderr := runCLI(t, "hello\n", "convert", "-", "--from", "plaintext", "--to", "csv", "--max-loss", "L1")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if stdout != "" {
		t.Errorf("output written despite budget violation: %q", stdout)
	}
	if !strings.Contains(stderr, "loss class L3 exceeds budget L1") {
		t.Errorf("stderr = %q", stderr)
	}

	code, _, stderr = runCLI(t, "a,b\n", "convert", "-", "--from", "csv", "--to", "tsv", "--max-loss", "L0")
	if code != 0 {
		t.Errorf("lossless conversion rejected: %s", stderr)
	}

	code, _, stderr = runCLI(t, "a,b\n", "convert", "-", "--from", "csv", "--to", "tsv", "--max-loss", "L9")
	if code != 1 || !strings.Contains(stderr, "loss class") {
		t.Errorf("bad --max-loss: code = %d, stderr = %q", code, stderr)
	}
}

func TestCheck(t *testing.T) {
	code, stdout, stderr := runCLI(t, "a,b\n1,2\n", "check", "-", "--from", "csv")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"BYTE_EQUAL", "IR_STRUCTURE_EQUAL", "IR_FIDELITY", "L0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("check output missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "FAIL") {
		t.Errorf("unexpected failure:\n%s", stdout)
	}

	code, stdout, _ = runCLI(t, "a,b\n", "check", "-", "--from", "csv", "--json")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if report["status"] != "pass" || report["format"] != "csv" {
		t.Errorf("report = %v", report)
	}
}
