// Package enginetest provides filesystem and runner scaffolding shared by
// the execengine test suites: temporary scripts/working directories and a
// FakeRunner that lets tests script job completion deterministically
// without forking real processes.
package enginetest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
)

// Dirs holds a temporary working directory and a temporary scripts
// directory, cleaned up automatically via t.Cleanup.
type Dirs struct {
	WorkingDir string
	ScriptsDir string
}

// TempDirs creates a fresh working directory and scripts directory for a
// single test.
func TempDirs(t testing.TB) Dirs {
	t.Helper()
	wd, err := os.MkdirTemp("", "execengine-work-")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { RemoveAll(t, wd) })

	sd, err := os.MkdirTemp("", "execengine-scripts-")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { RemoveAll(t, sd) })

	return Dirs{WorkingDir: wd, ScriptsDir: sd}
}

// RemoveAll wraps os.RemoveAll and fails the test on failure.
func RemoveAll(t testing.TB, path string) {
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

// ScriptedJob is one canned outcome a FakeRunner will return for a
// submitted job, in submission order.
type ScriptedJob struct {
	ExitCode int
	Stdout   string
	Err      error // if set, Submit itself fails with this error
}

// FakeRunner implements a runner capability (submit/is_running/exit_code/
// stdout/terminate) entirely in memory: every submitted job finishes
// immediately with a pre-scripted outcome, in submission order. Tests that
// need real process semantics (missing executables, real exit codes, real
// stdout framing) use processrunner directly instead.
type FakeRunner struct {
	mu      sync.Mutex
	outcome []ScriptedJob
	next    int
	byID    map[string]ScriptedJob
	ids     map[string]bool
	seq     int
}

// NewFakeRunner returns a FakeRunner that hands out outcomes in the given
// order as jobs are submitted. If more jobs are submitted than outcomes are
// given, later jobs default to exit code 0 with empty stdout.
func NewFakeRunner(outcomes ...ScriptedJob) *FakeRunner {
	return &FakeRunner{
		outcome: outcomes,
		byID:    make(map[string]ScriptedJob),
		ids:     make(map[string]bool),
	}
}

func (f *FakeRunner) Submit(_ context.Context, argv []string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var o ScriptedJob
	if f.next < len(f.outcome) {
		o = f.outcome[f.next]
	}
	f.next++
	f.seq++
	id := fmt.Sprintf("fake-%d", f.seq)
	if o.Err != nil {
		return "", o.Err
	}
	f.byID[id] = o
	f.ids[id] = true
	return id, nil
}

func (f *FakeRunner) IsRunning(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return false, nil // FakeRunner jobs finish the instant they are submitted
}

func (f *FakeRunner) ExitCode(id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return 0, fmt.Errorf("enginetest: unknown job id %q", id)
	}
	return o.ExitCode, nil
}

func (f *FakeRunner) Stdout(id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return "", fmt.Errorf("enginetest: unknown job id %q", id)
	}
	return o.Stdout, nil
}

func (f *FakeRunner) Terminate(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
	return nil
}
