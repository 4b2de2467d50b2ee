package project

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"zenith/pkg/domain"
)

func TestReadFilesDefault(t *testing.T) {
	s := NewStore()

	got := s.ReadFiles()
	if got != DefaultProject {
		t.Errorf("ReadFiles on empty store = %+v, want DefaultProject", got)
	}
	if s.Exists() {
		t.Error("Exists = true before any mutation")
	}
}

func TestUpdateFile(t *testing.T) {
	s := NewStore()

	p, err := s.UpdateFile("css", "body { background: blue; }")
	if err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if p.CSS != "body { background: blue; }" {
		t.Errorf("CSS = %q", p.CSS)
	}
	// Other fields keep their defaults.
	if p.HTML != DefaultProject.HTML || p.JavaScript != DefaultProject.JavaScript {
		t.Error("UpdateFile changed fields other than the target")
	}

	// Synchronous read-after-write.
	if got := s.ReadFiles(); got.CSS != "body { background: blue; }" {
		t.Errorf("ReadFiles after update: CSS = %q", got.CSS)
	}
	if !s.Exists() {
		t.Error("Exists = false after first update")
	}
}

func TestUpdateFileInvalidTarget(t *testing.T) {
	s := NewStore()

	_, err := s.UpdateFile("typescript", "nope")
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("err = %v, want ErrInvalidTarget", err)
	}
	if s.Exists() {
		t.Error("failed update created a project")
	}
}

func TestPatchFileExact(t *testing.T) {
	s := NewStore()
	s.UpdateFile("css", "body { background: white; }\n.btn { background: white; }")

	p, outcome, err := s.PatchFile("css", "background: white;", "background: blue;")
	if err != nil {
		t.Fatalf("PatchFile: %v", err)
	}
	if outcome.Lenient {
		t.Error("exact match flagged as lenient")
	}
	// First occurrence only.
	want := "body { background: blue; }\n.btn { background: white; }"
	if p.CSS != want {
		t.Errorf("CSS = %q, want %q", p.CSS, want)
	}
}

func TestPatchFileLenient(t *testing.T) {
	s := NewStore()
	s.UpdateFile("javascript", "const x = 1;")

	p, outcome, err := s.PatchFile("javascript", "  const x = 1;\n", "const x = 2;")
	if err != nil {
		t.Fatalf("PatchFile: %v", err)
	}
	if !outcome.Lenient {
		t.Error("trimmed match not flagged as lenient")
	}
	if p.JavaScript != "const x = 2;" {
		t.Errorf("JavaScript = %q", p.JavaScript)
	}
}

func TestPatchFileNotFound(t *testing.T) {
	s := NewStore()
	s.UpdateFile("html", "<h1>Hello</h1>")

	_, _, err := s.PatchFile("html", "<h2>Missing</h2>", "<h2>Found</h2>")
	if !errors.Is(err, ErrPatchNotFound) {
		t.Errorf("err = %v, want ErrPatchNotFound", err)
	}
	if !strings.Contains(err.Error(), "html") {
		t.Errorf("error does not name the target file: %v", err)
	}
	// Field unchanged on failure.
	if got := s.ReadFiles(); got.HTML != "<h1>Hello</h1>" {
		t.Errorf("HTML mutated on failed patch: %q", got.HTML)
	}
}

func TestPatchFileInvalidTarget(t *testing.T) {
	s := NewStore()

	_, _, err := s.PatchFile("sass", "a", "b")
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("err = %v, want ErrInvalidTarget", err)
	}
}

func TestWriteZip(t *testing.T) {
	p := domain.Project{HTML: "<p>hi</p>", CSS: "p{}", JavaScript: "void 0;"}

	var buf bytes.Buffer
	if err := WriteZip(&buf, p); err != nil {
		t.Fatalf("WriteZip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}

	want := map[string]string{
		"index.html": "<p>hi</p>",
		"styles.css": "p{}",
		"script.js":  "void 0;",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d files, want %d", len(zr.File), len(want))
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		if string(b) != want[f.Name] {
			t.Errorf("%s = %q, want %q", f.Name, b, want[f.Name])
		}
	}
}
