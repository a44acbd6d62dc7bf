package execengine

import (
	"context"
	"sync"

	"golang.org/x/xerrors"
)

// JobState is the lifecycle state of a SchedulerJob. Transitions are
// strictly Pending -> Running -> Finished.
type JobState int

const (
	Pending JobState = iota
	Running
	Finished
)

func (s JobState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// SchedulerJob is one submitted unit of work: a numeric id, an optional
// unique name, a wait-for set fixed at submission, and the runner-assigned
// handle once dispatched.
type SchedulerJob struct {
	// Number is monotonically assigned at submission, starting at 1.
	Number int
	// Name, if non-empty, is unique across the scheduler's lifetime.
	Name string
	// WaitFor is fixed at submission time.
	WaitFor []string
	// Argv is what gets submitted to the runner.
	Argv []string
	// Cwd is the working directory the job runs in.
	Cwd string

	runner Runner

	mu       sync.Mutex
	state    JobState
	id       string
	exitCode int
	stdout   string
	submitErr error
	done     chan struct{}
}

func newSchedulerJob(number int, name string, waitFor []string, argv []string, cwd string, runner Runner) *SchedulerJob {
	return &SchedulerJob{
		Number:  number,
		Name:    name,
		WaitFor: append([]string(nil), waitFor...),
		Argv:    argv,
		Cwd:     cwd,
		runner:  runner,
		done:    make(chan struct{}),
	}
}

// State returns the job's current lifecycle state.
func (j *SchedulerJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ExitCode returns the job's exit code and whether it has finished. Before
// the job finishes, the returned bool is false and the int is meaningless.
func (j *SchedulerJob) ExitCode() (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode, j.state == Finished
}

// Stdout returns the job's final captured stdout, plus the error, if any,
// from submitting the job to its runner. Errors from polling the runner are
// not recorded here.
func (j *SchedulerJob) Stdout() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stdout, j.submitErr
}

// Wait blocks until the job finishes or ctx is done, whichever comes first.
func (j *SchedulerJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForSatisfied reports whether every name in WaitFor is present in
// completed.
func (j *SchedulerJob) waitForSatisfied(completed map[string]struct{}) bool {
	for _, w := range j.WaitFor {
		if _, ok := completed[w]; !ok {
			return false
		}
	}
	return true
}

// start dispatches the job to its runner. On failure the job transitions
// straight to Finished with a synthetic non-zero exit code, matching "a
// command that never starts still gets a terminal state" (the scheduler
// does not retry).
func (j *SchedulerJob) start(ctx context.Context) error {
	id, err := j.runner.Submit(ctx, j.Argv, j.Cwd)
	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.state = Finished
		j.exitCode = -1
		j.submitErr = xerrors.Errorf("submit %v: %w", j.Argv, err)
		close(j.done)
		return err
	}
	j.id = id
	j.state = Running
	return nil
}

// poll checks whether a running job has finished, capturing its exit code
// and stdout when it has. It is a no-op for jobs that are not Running.
func (j *SchedulerJob) poll() (finished bool, err error) {
	j.mu.Lock()
	if j.state != Running {
		finished = j.state == Finished
		j.mu.Unlock()
		return finished, nil
	}
	id, runner := j.id, j.runner
	j.mu.Unlock()

	running, err := runner.IsRunning(id)
	if err != nil {
		return false, xerrors.Errorf("job %d: is_running: %w", j.Number, err)
	}
	if running {
		return false, nil
	}

	code, err := runner.ExitCode(id)
	if err != nil {
		return false, xerrors.Errorf("job %d: exit_code: %w", j.Number, err)
	}
	out, err := runner.Stdout(id)
	if err != nil {
		return false, xerrors.Errorf("job %d: stdout: %w", j.Number, err)
	}

	j.mu.Lock()
	j.exitCode = code
	j.stdout = out
	j.state = Finished
	close(j.done)
	j.mu.Unlock()
	return true, nil
}
