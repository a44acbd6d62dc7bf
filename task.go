package execengine

import (
	"context"
	"sync"

	"github.com/distr1/execengine/internal/scriptbuilder"
	"github.com/orcaman/writerseeker"
	"golang.org/x/xerrors"
)

// Future is a reference to another task's Output, to be resolved once that
// task has run. Passing a Future as a constructor argument is how a task
// declares "one of my arguments isn't known yet, read it off task T once T
// is done" without relying on container aliasing: resolution happens
// exactly once, at the consuming task's run time, by calling the
// producer's Output function.
type Future struct {
	task *PipelineTask
}

func (f Future) resolve() any {
	if f.task == nil || f.task.outputFn == nil {
		return nil
	}
	return f.task.outputFn()
}

// TaskSpec describes a PipelineTask's behavior as a capability record: a
// set of function values rather than methods to override on a subclass
// (see the task.go entry in DESIGN.md).
type TaskSpec struct {
	// Name identifies the task for logs and Pipeline bookkeeping.
	Name string

	// Args is the kwargs bag; values may be plain data or Futures
	// referencing another task's eventual Output.
	Args map[string]any

	// Init runs synchronously at construction time, before Setup. It
	// typically only initializes internal state; Args is already stored
	// and available.
	Init func(args map[string]any) error

	// Setup runs at task execution time, after argument resolution. It
	// accumulates commands via t.AddCmd, or short-circuits via t.Fail.
	Setup func(t *PipelineTask) error

	// Finish runs after every accumulated command has completed,
	// regardless of their exit codes, unless Fail was called during
	// Setup (in which case Finish is skipped entirely).
	Finish func(t *PipelineTask) error

	// Output, if set, is what Output() and this task's Future resolve to
	// for downstream consumers.
	Output func() any
}

// PipelineTask is one user-defined unit of work: three phases, an argument
// bag, an accumulated command list, and the exit code/stdout collected
// once those commands have run.
type PipelineTask struct {
	name     string
	setupFn  func(t *PipelineTask) error
	finishFn func(t *PipelineTask) error
	outputFn func() any

	mu         sync.Mutex
	args       map[string]any
	commands   []Command
	failed     bool
	failReason string
	exitCode   int
	completed  bool
	stdout     string
	jobs       []*SchedulerJob
}

// NewTask constructs a PipelineTask and synchronously invokes spec.Init, if
// given, with the stored argument bag.
func NewTask(spec TaskSpec) (*PipelineTask, error) {
	args := spec.Args
	if args == nil {
		args = map[string]any{}
	}
	t := &PipelineTask{
		name:     spec.Name,
		args:     args,
		setupFn:  spec.Setup,
		finishFn: spec.Finish,
		outputFn: spec.Output,
	}
	if spec.Init != nil {
		if err := spec.Init(t.args); err != nil {
			return nil, xerrors.Errorf("task %q: init: %w", spec.Name, err)
		}
	}
	return t, nil
}

// Name returns the task's display name.
func (t *PipelineTask) Name() string { return t.name }

// Arg returns the value stored for key. Before run it may still be a
// Future; by the time Setup and Finish run, any Future there has already
// been resolved. (Init receives the argument bag directly, not the task.)
func (t *PipelineTask) Arg(key string) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.args[key]
}

// AddCmd appends a command to the task's command list. Callable from
// Setup. A no-op once Fail has been called.
func (t *PipelineTask) AddCmd(c Command) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failed {
		return
	}
	t.commands = append(t.commands, c)
}

// Fail marks the task as failed with the given exit code (default 1 if
// omitted) and a human-readable message. Any commands already added via
// AddCmd are discarded and no further ones are dispatched; Finish is
// skipped entirely.
func (t *PipelineTask) Fail(message string, exitCode ...int) {
	code := 1
	if len(exitCode) > 0 {
		code = exitCode[0]
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
	t.failReason = message
	t.exitCode = code
	t.commands = nil
}

// Output returns this task's advertised value, calling the user-supplied
// Output function. Before the task has run this may return whatever the
// function currently computes (e.g. an empty slice); use AsFuture to defer
// resolution to another task's run time instead.
func (t *PipelineTask) Output() any {
	if t.outputFn == nil {
		return nil
	}
	return t.outputFn()
}

// AsFuture returns a deferred reference to this task's Output, suitable as
// a value in another task's TaskSpec.Args.
func (t *PipelineTask) AsFuture() Future { return Future{task: t} }

// Completed reports whether run has finished (successfully or not, short
// of an explicit Fail, which also sets this).
func (t *PipelineTask) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// ExitCode returns the task's exit code: 0 if every command succeeded (or
// there were none), the first non-zero command exit code encountered in
// submission order otherwise, or the code given to Fail.
func (t *PipelineTask) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode
}

// Stdout returns the concatenated stdout of every submitted command, in
// submission order. Empty if the task failed via Fail before dispatch.
func (t *PipelineTask) Stdout() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stdout
}

// FailureReason returns the message given to Fail, if any.
func (t *PipelineTask) FailureReason() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failReason, t.failed
}

func (t *PipelineTask) succeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed && t.exitCode == 0
}

// resolveArgs resolves every Future-valued kwarg to its producer's current
// Output, exactly once. Called at the start of run, never earlier.
func (t *PipelineTask) resolveArgs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.args {
		if f, ok := v.(Future); ok {
			t.args[k] = f.resolve()
		}
	}
}

// run is the engine-driven executor: resolve args, call Setup, dispatch
// accumulated commands to sched, await them, then call Finish. Every phase
// runs synchronously within the calling goroutine; concurrency across
// tasks comes from Pipeline launching multiple tasks in their own
// goroutines, not from an async mode within a single task's run.
func (t *PipelineTask) run(ctx context.Context, sched *Scheduler, scriptsDir, workingDir string) error {
	t.resolveArgs()

	if t.setupFn != nil {
		if err := t.setupFn(t); err != nil {
			return xerrors.Errorf("task %q: setup: %w", t.name, err)
		}
	}

	t.mu.Lock()
	failed := t.failed
	cmds := append([]Command(nil), t.commands...)
	t.mu.Unlock()

	if failed {
		// fail() short-circuits dispatch: no commands run, finish is not
		// called, stdout stays empty, exit code is whatever Fail set.
		t.mu.Lock()
		t.completed = true
		t.mu.Unlock()
		return nil
	}

	jobs := make([]*SchedulerJob, 0, len(cmds))
	for _, c := range cmds {
		spec := c.Cmd()
		scriptPath, err := scriptbuilder.Build(c.Label(), spec.Program, spec.Args, scriptsDir)
		if err != nil {
			return xerrors.Errorf("task %q: build script for %q: %w", t.name, c.Label(), err)
		}
		job, err := sched.Submit([]string{scriptPath}, WithCwd(workingDir))
		if err != nil {
			return xerrors.Errorf("task %q: submit %q: %w", t.name, c.Label(), err)
		}
		jobs = append(jobs, job)
	}

	var out writerseeker.WriterSeeker
	exitCode := 0
	exitSet := false
	for _, j := range jobs {
		if err := j.Wait(ctx); err != nil {
			return xerrors.Errorf("task %q: wait for job %d: %w", t.name, j.Number, err)
		}
		stdout, _ := j.Stdout()
		out.Write([]byte(stdout))
		if code, _ := j.ExitCode(); code != 0 && !exitSet {
			exitCode = code
			exitSet = true
		}
	}

	stdoutBytes := make([]byte, 0)
	if r := out.BytesReader(); r != nil {
		buf := make([]byte, r.Len())
		r.Read(buf)
		stdoutBytes = buf
	}

	t.mu.Lock()
	t.stdout = string(stdoutBytes)
	t.exitCode = exitCode
	t.jobs = jobs
	t.mu.Unlock()

	if t.finishFn != nil {
		if err := t.finishFn(t); err != nil {
			return xerrors.Errorf("task %q: finish: %w", t.name, err)
		}
	}

	t.mu.Lock()
	t.completed = true
	t.mu.Unlock()
	return nil
}
