package engineenv

import (
	"os"
	"strings"
	"testing"
)

func TestFindRootHonorsEnvVar(t *testing.T) {
	t.Setenv("EXECENGINE_ROOT", "/tmp/custom-execengine-root")
	if got, want := findRoot(), "/tmp/custom-execengine-root"; got != want {
		t.Errorf("findRoot() = %q, want %q", got, want)
	}
}

func TestFindRootDefaultsUnderHome(t *testing.T) {
	t.Setenv("EXECENGINE_ROOT", "")
	got := findRoot()
	if !strings.HasSuffix(got, "/.execengine") {
		t.Errorf("findRoot() = %q, want a path ending in /.execengine", got)
	}
	if home := os.Getenv("HOME"); home != "" && !strings.HasPrefix(got, home) {
		t.Errorf("findRoot() = %q, want it rooted under HOME=%q", got, home)
	}
}
