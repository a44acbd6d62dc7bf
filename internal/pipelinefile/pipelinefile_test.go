package pipelinefile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeFile(t, `
version: "1"
tasks:
  build:
    commands:
      - ["go", "build", "./..."]
  test:
    requires: ["build"]
    commands:
      - ["go", "test", "./..."]
    cwd: "/tmp"
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Tasks) != 2 {
		t.Fatalf("len(Tasks) = %d, want 2", len(f.Tasks))
	}
	test, ok := f.Tasks["test"]
	if !ok {
		t.Fatal("Tasks[\"test\"] missing")
	}
	if len(test.Requires) != 1 || test.Requires[0] != "build" {
		t.Errorf("test.Requires = %v, want [build]", test.Requires)
	}
	if test.Cwd != "/tmp" {
		t.Errorf("test.Cwd = %q, want /tmp", test.Cwd)
	}
}

func TestLoadUnknownRequires(t *testing.T) {
	path := writeFile(t, `
tasks:
  build:
    requires: ["does-not-exist"]
    commands:
      - ["true"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load with an unknown requires target: got nil error, want non-nil")
	}
}

func TestLoadUnsupportedVersion(t *testing.T) {
	path := writeFile(t, `
version: "99"
tasks: {}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load with an unsupported version: got nil error, want non-nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of a missing file: got nil error, want non-nil")
	}
}
