package joblog

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveWritesGzippedFile(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const stdout = "#### COMMAND greet\nHello!\n#### EXIT_CODE 0\n"
	if err := a.Archive(7, "say hello!", stdout, 0); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	path, ok := a.Path(7)
	if !ok {
		t.Fatal("Path(7): not found after Archive")
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Path(7) = %q, want a file under %q", path, dir)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != stdout {
		t.Errorf("decompressed content = %q, want %q", got, stdout)
	}
}

func TestPathUnknownJob(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.Path(99); ok {
		t.Error("Path(99) for a never-archived job: got ok=true, want false")
	}
}
