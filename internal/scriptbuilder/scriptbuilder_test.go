package scriptbuilder

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestBuildFramesCommandOutput is scenario S4: the rendered script, when
// actually run, prints the COMMAND/HOSTNAME/USER/START markers, the
// command's own output, then END/EXIT_CODE, in that order.
func TestBuildFramesCommandOutput(t *testing.T) {
	dir := t.TempDir()
	path, err := Build("greet", "echo", []string{"Hello!"}, dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("script %s is not executable: mode %v", path, info.Mode())
	}

	out, err := exec.Command(path).CombinedOutput()
	if err != nil {
		t.Fatalf("running generated script: %v (output: %s)", err, out)
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7: %q", len(lines), out)
	}
	want := []string{"#### COMMAND greet", "#### HOSTNAME ", "#### USER ", "#### START "}
	for i, prefix := range want {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
	if lines[4] != "Hello!" {
		t.Errorf("line 4 = %q, want %q", lines[4], "Hello!")
	}
	if !strings.HasPrefix(lines[5], "#### END ") {
		t.Errorf("line 5 = %q, want prefix \"#### END \"", lines[5])
	}
	if lines[6] != "#### EXIT_CODE 0" {
		t.Errorf("line 6 = %q, want %q", lines[6], "#### EXIT_CODE 0")
	}
}

func TestBuildQuotesArguments(t *testing.T) {
	dir := t.TempDir()
	path, err := Build("weird arg", "echo", []string{"it's a test"}, dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out, err := exec.Command(path).CombinedOutput()
	if err != nil {
		t.Fatalf("running generated script: %v (output: %s)", err, out)
	}
	if !strings.Contains(string(out), "it's a test") {
		t.Errorf("output %q does not contain the quoted argument verbatim", out)
	}
}

func TestBuildDistinctFilenamesForSameLabel(t *testing.T) {
	dir := t.TempDir()
	p1, err := Build("dup", "true", nil, dir)
	if err != nil {
		t.Fatalf("Build 1: %v", err)
	}
	p2, err := Build("dup", "true", nil, dir)
	if err != nil {
		t.Fatalf("Build 2: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("Build called twice with the same label produced the same path %q", p1)
	}
	if filepath.Dir(p1) != dir || filepath.Dir(p2) != dir {
		t.Errorf("scripts not written under %q: %q, %q", dir, p1, p2)
	}
}
