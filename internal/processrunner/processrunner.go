// Package processrunner implements execengine.Runner by forking and
// executing real processes via os/exec.
package processrunner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
)

type job struct {
	cmd *exec.Cmd

	mu       sync.Mutex
	stdout   bytes.Buffer
	finished bool
	exitCode int
	waitErr  error
}

// Runner forks a real process per Submit, using os/exec.CommandContext.
// Jobs are tracked in a map keyed by an opaque, monotonically increasing
// string id rather than the exec.Cmd pointer itself, so that
// execengine.Runner's plain-string id contract is satisfied without
// leaking process internals across the interface boundary.
type Runner struct {
	mu   sync.Mutex
	jobs map[string]*job
	next uint64
}

// New constructs an empty Runner.
func New() *Runner {
	return &Runner{jobs: make(map[string]*job)}
}

// Submit starts argv[0] with argv[1:] as arguments and cwd as its working
// directory, capturing combined stdout/stderr in memory. It returns
// immediately once the process has started; it does not wait for it to
// exit.
func (r *Runner) Submit(ctx context.Context, argv []string, cwd string) (string, error) {
	if len(argv) == 0 {
		return "", xerrors.New("processrunner: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cwd

	j := &job{cmd: cmd}
	cmd.Stdout = &j.stdout
	cmd.Stderr = &j.stdout

	if err := cmd.Start(); err != nil {
		return "", xerrors.Errorf("processrunner: start %v: %w", argv, err)
	}

	id := fmt.Sprintf("proc-%d", atomic.AddUint64(&r.next, 1))
	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	go func() {
		err := cmd.Wait()
		j.mu.Lock()
		j.finished = true
		j.waitErr = err
		if cmd.ProcessState != nil {
			j.exitCode = cmd.ProcessState.ExitCode()
		} else if err != nil {
			j.exitCode = -1
		}
		j.mu.Unlock()
	}()

	return id, nil
}

func (r *Runner) lookup(id string) (*job, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return nil, xerrors.Errorf("processrunner: unknown job %q", id)
	}
	return j, nil
}

// IsRunning reports whether the job has not yet exited.
func (r *Runner) IsRunning(id string) (bool, error) {
	j, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.finished, nil
}

// ExitCode returns the job's exit code. Valid only once IsRunning reports
// false.
func (r *Runner) ExitCode(id string) (int, error) {
	j, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode, nil
}

// Stdout returns the job's captured combined stdout/stderr.
func (r *Runner) Stdout(id string) (string, error) {
	j, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stdout.String(), nil
}

// Terminate sends the job's process a kill signal.
func (r *Runner) Terminate(id string) error {
	j, err := r.lookup(id)
	if err != nil {
		return err
	}
	j.mu.Lock()
	proc := j.cmd.Process
	j.mu.Unlock()
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil {
		return xerrors.Errorf("processrunner: kill %q: %w", id, err)
	}
	return nil
}
