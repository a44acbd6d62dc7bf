package execengine

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/distr1/execengine/internal/engineenv"
	"github.com/distr1/execengine/internal/trace"
	"golang.org/x/xerrors"
)

// JobArchiver persists a finished job's framed stdout somewhere durable
// (e.g. gzip-compressed to disk, via internal/joblog). If configured with
// one, Scheduler calls Archive once for each job it sees finish in its
// completion pass, skipping jobs that exited 0 with empty stdout.
type JobArchiver interface {
	Archive(jobNumber int, label string, stdout string, exitCode int) error
}

// StatusWriter receives scheduler occupancy updates once per loop
// iteration, used to drive an optional live terminal status line (see
// internal/statusline).
type StatusWriter interface {
	Update(running, waiting int)
}

// Config configures a Scheduler.
type Config struct {
	// Runner is the default runner used for jobs that don't specify one via
	// WithRunner. Required.
	Runner Runner

	// MaxConcurrent caps simultaneously running jobs. Zero means unlimited.
	MaxConcurrent int

	// PollInterval is how long the background loop sleeps between
	// iterations. Defaults to 200ms.
	PollInterval time.Duration

	// Log receives scheduler diagnostics. Defaults to a logger writing to
	// os.Stderr.
	Log *log.Logger

	// Archiver, if set, receives finished jobs' framed stdout for durable
	// storage (see JobArchiver for which jobs are passed to it).
	Archiver JobArchiver

	// Status, if set, receives occupancy updates once per loop iteration.
	Status StatusWriter

	// ScriptsDir is where wrapper scripts built on behalf of PipelineTask
	// commands are written. Defaults to engineenv.Root + "/scripts".
	ScriptsDir string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.Log == nil {
		c.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = filepath.Join(engineenv.Root, "scripts")
	}
	return c
}

// Scheduler is a long-lived background loop that accepts submissions,
// polls running jobs, releases waiters when their named prerequisites
// complete, and enforces MaxConcurrent. The submitter side and the loop
// side communicate through a mutex-guarded intake queue and an append-only
// completed-names set; only the loop goroutine mutates the running/waiting
// lists, matching the upstream batch scheduler's ownership split between
// worker goroutines and the dispatch goroutine.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	names   map[string]struct{}
	nextNum int
	queue   []*SchedulerJob
	started bool
	stopReq bool
	stopped bool

	traceMu sync.Mutex
	traces  map[int]*trace.PendingEvent

	nRunning int32
	nWaiting int32

	loopDone chan struct{}
}

// NewScheduler constructs a Scheduler. It does not start the background
// loop; call Start for that.
func NewScheduler(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:      cfg,
		names:    make(map[string]struct{}),
		loopDone: make(chan struct{}),
		traces:   make(map[int]*trace.PendingEvent),
	}
}

type jobOptions struct {
	name    string
	waitFor []string
	cwd     string
	runner  Runner
}

// SubmitOption configures an individual Submit call.
type SubmitOption func(*jobOptions)

// WithName gives the job a name, unique for the scheduler's lifetime, that
// other jobs can reference via WithWaitFor.
func WithName(name string) SubmitOption {
	return func(o *jobOptions) { o.name = name }
}

// WithWaitFor makes the job wait until every named job has completed
// before it is dispatched.
func WithWaitFor(names ...string) SubmitOption {
	return func(o *jobOptions) { o.waitFor = append(o.waitFor, names...) }
}

// WithCwd sets the job's working directory.
func WithCwd(dir string) SubmitOption {
	return func(o *jobOptions) { o.cwd = dir }
}

// WithRunner overrides the scheduler's default runner for this job.
func WithRunner(r Runner) SubmitOption {
	return func(o *jobOptions) { o.runner = r }
}

// Submit enqueues argv for execution and returns immediately; it never
// blocks on dispatch. It fails synchronously if name duplicates a
// previously submitted name, if any wait_for name is unknown, or if the
// scheduler has been stopped.
func (s *Scheduler) Submit(argv []string, opts ...SubmitOption) (*SchedulerJob, error) {
	var o jobOptions
	for _, opt := range opts {
		opt(&o)
	}
	runner := o.runner
	if runner == nil {
		runner = s.cfg.Runner
	}
	if runner == nil {
		return nil, xerrors.Errorf("submit %v: %w", argv, xerrors.New("no runner configured"))
	}

	s.mu.Lock()
	if s.stopped || s.stopReq {
		s.mu.Unlock()
		return nil, xerrors.Errorf("submit %v: %w", argv, ErrSchedulerStopped)
	}
	if o.name != "" {
		if _, dup := s.names[o.name]; dup {
			s.mu.Unlock()
			return nil, xerrors.Errorf("submit %v: name %q: %w", argv, o.name, ErrDuplicateName)
		}
	}
	for _, w := range o.waitFor {
		if _, ok := s.names[w]; !ok {
			s.mu.Unlock()
			return nil, xerrors.Errorf("submit %v: wait_for %q: %w", argv, w, ErrUnknownWaitFor)
		}
	}
	s.nextNum++
	num := s.nextNum
	if o.name != "" {
		s.names[o.name] = struct{}{}
	}
	job := newSchedulerJob(num, o.name, o.waitFor, argv, o.cwd, runner)
	s.queue = append(s.queue, job)
	s.mu.Unlock()

	atomic.AddInt32(&s.nWaiting, 1)
	return job, nil
}

// Start begins the background scheduling loop. It is idempotent to call
// concurrently with other methods but an error to call twice.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop rejects further Submit calls immediately and blocks until the
// background loop has drained every already-accepted job (running or
// waiting) and exited. In-flight jobs are not killed. Jobs accepted before
// Stop that are still waiting keep being dispatched as capacity and their
// wait_for names allow; Stop does not halt their dispatch.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopReq {
		s.mu.Unlock()
		<-s.loopDone
		return
	}
	s.stopReq = true
	started := s.started
	s.mu.Unlock()

	if !started {
		// Never started: nothing to wait for, but mark stopped so future
		// Submits are rejected per ErrSchedulerStopped.
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		return
	}
	<-s.loopDone
}

// IsEmpty reports whether the scheduler has neither running nor waiting
// jobs.
func (s *Scheduler) IsEmpty() bool {
	return atomic.LoadInt32(&s.nRunning) == 0 && atomic.LoadInt32(&s.nWaiting) == 0
}

// NRunning returns the number of currently running jobs.
func (s *Scheduler) NRunning() int { return int(atomic.LoadInt32(&s.nRunning)) }

// NWaiting returns the number of jobs waiting on capacity or dependencies.
func (s *Scheduler) NWaiting() int { return int(atomic.LoadInt32(&s.nWaiting)) }

// ScriptsDir returns the directory wrapper scripts are written to.
func (s *Scheduler) ScriptsDir() string { return s.cfg.ScriptsDir }

// Tick runs a single scheduling iteration: completion pass, intake pass,
// dispatch pass. It is exported so tests (and callers who want manual
// control, e.g. driven by a FakeRunner) can step the scheduler
// deterministically instead of waiting on wall-clock PollInterval; Start's
// background loop simply calls Tick in a loop.
func (s *Scheduler) Tick(ctx context.Context, running, waiting []*SchedulerJob, completed map[string]struct{}) (stillRunning, stillWaiting []*SchedulerJob, err error) {
	// Completion pass.
	stillRunning = running[:0]
	for _, j := range running {
		done, perr := j.poll()
		if perr != nil {
			s.cfg.Log.Printf("execengine: job %d: %v", j.Number, perr)
			stillRunning = append(stillRunning, j)
			continue
		}
		if !done {
			stillRunning = append(stillRunning, j)
			continue
		}
		code, _ := j.ExitCode()
		s.cfg.Log.Printf("execengine: job %d (%s) finished, exit=%d", j.Number, jobLabel(j), code)
		s.traceMu.Lock()
		if ev, ok := s.traces[j.Number]; ok {
			ev.Done()
			delete(s.traces, j.Number)
		}
		s.traceMu.Unlock()
		if j.Name != "" {
			completed[j.Name] = struct{}{}
		}
		if s.cfg.Archiver != nil {
			if out, _ := j.Stdout(); out != "" || code != 0 {
				if aerr := s.cfg.Archiver.Archive(j.Number, jobLabel(j), out, code); aerr != nil {
					s.cfg.Log.Printf("execengine: archive job %d: %v", j.Number, aerr)
				}
			}
		}
	}

	// Intake pass.
	s.mu.Lock()
	if len(s.queue) > 0 {
		waiting = append(waiting, s.queue...)
		s.queue = s.queue[:0]
	}
	s.mu.Unlock()

	// Dispatch pass: ready := capacity-available AND wait_for subset of
	// completed. Because dispatched only ever increases within this
	// pass, a job that cannot be dispatched for lack of capacity naturally
	// leaves capacity for no one after it either (FIFO tie-break), while a
	// job blocked purely on an unmet dependency does not consume capacity
	// and so does not hold up independent, capacity-ready jobs later in
	// the list.
	dispatched := len(stillRunning)
	stillWaiting = stillWaiting[:0]
	for _, j := range waiting {
		capacityOK := s.cfg.MaxConcurrent <= 0 || dispatched < s.cfg.MaxConcurrent
		if !capacityOK || !j.waitForSatisfied(completed) {
			stillWaiting = append(stillWaiting, j)
			continue
		}
		if serr := j.start(ctx); serr != nil {
			s.cfg.Log.Printf("execengine: job %d: start: %v", j.Number, serr)
			if j.Name != "" {
				completed[j.Name] = struct{}{}
			}
			continue
		}
		s.traceMu.Lock()
		s.traces[j.Number] = trace.Event(jobLabel(j), j.Number)
		s.traceMu.Unlock()
		stillRunning = append(stillRunning, j)
		dispatched++
	}

	atomic.StoreInt32(&s.nRunning, int32(len(stillRunning)))
	atomic.StoreInt32(&s.nWaiting, int32(len(stillWaiting)))
	if s.cfg.Status != nil {
		s.cfg.Status.Update(len(stillRunning), len(stillWaiting))
	}

	return stillRunning, stillWaiting, nil
}

func jobLabel(j *SchedulerJob) string {
	if j.Name != "" {
		return j.Name
	}
	if len(j.Argv) > 0 {
		return j.Argv[0]
	}
	return "<job>"
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)
	defer func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
	}()

	var running, waiting []*SchedulerJob
	completed := make(map[string]struct{})
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var err error
		running, waiting, err = s.Tick(ctx, running, waiting, completed)
		if err != nil {
			s.cfg.Log.Printf("execengine: scheduler tick: %v", err)
		}

		s.mu.Lock()
		stopReq := s.stopReq
		s.mu.Unlock()
		if stopReq && len(running) == 0 && len(waiting) == 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
