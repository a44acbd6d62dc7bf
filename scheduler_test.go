package execengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distr1/execengine/internal/enginetest"
)

func TestSchedulerDuplicateName(t *testing.T) {
	s := NewScheduler(Config{Runner: enginetest.NewFakeRunner()})
	if _, err := s.Submit([]string{"true"}, WithName("x")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := s.Submit([]string{"true"}, WithName("x"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("second submit error = %v, want ErrDuplicateName", err)
	}
}

func TestSchedulerUnknownWaitFor(t *testing.T) {
	s := NewScheduler(Config{Runner: enginetest.NewFakeRunner()})
	_, err := s.Submit([]string{"true"}, WithWaitFor("nonexistent"))
	if !errors.Is(err, ErrUnknownWaitFor) {
		t.Fatalf("submit error = %v, want ErrUnknownWaitFor", err)
	}
}

func TestSchedulerRejectsSubmitAfterStop(t *testing.T) {
	s := NewScheduler(Config{Runner: enginetest.NewFakeRunner()})
	s.Stop()
	_, err := s.Submit([]string{"true"})
	if !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("submit error = %v, want ErrSchedulerStopped", err)
	}
}

// runToCompletion drives Tick manually until no jobs remain running or
// waiting, bounding iterations so a scheduling bug fails the test instead
// of hanging it.
func runToCompletion(t *testing.T, ctx context.Context, s *Scheduler) {
	t.Helper()
	var running, waiting []*SchedulerJob
	completed := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		var err error
		running, waiting, err = s.Tick(ctx, running, waiting, completed)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if len(running) == 0 && len(waiting) == 0 {
			return
		}
	}
	t.Fatalf("scheduler did not drain after 1000 ticks (running=%d waiting=%d)", len(running), len(waiting))
}

func TestSchedulerWaitForOrdering(t *testing.T) {
	ctx := context.Background()
	runner := enginetest.NewFakeRunner(
		enginetest.ScriptedJob{ExitCode: 0, Stdout: "first\n"},
		enginetest.ScriptedJob{ExitCode: 0, Stdout: "second\n"},
	)
	s := NewScheduler(Config{Runner: runner})

	first, err := s.Submit([]string{"echo", "first"}, WithName("first"))
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	second, err := s.Submit([]string{"echo", "second"}, WithWaitFor("first"))
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}

	runToCompletion(t, ctx, s)

	if code, ok := first.ExitCode(); !ok || code != 0 {
		t.Fatalf("first.ExitCode() = (%d, %v), want (0, true)", code, ok)
	}
	if code, ok := second.ExitCode(); !ok || code != 0 {
		t.Fatalf("second.ExitCode() = (%d, %v), want (0, true)", code, ok)
	}
	if second.State() != Finished {
		t.Fatalf("second.State() = %v, want Finished", second.State())
	}
}

func TestSchedulerMaxConcurrent(t *testing.T) {
	ctx := context.Background()
	runner := enginetest.NewFakeRunner(
		enginetest.ScriptedJob{ExitCode: 0},
		enginetest.ScriptedJob{ExitCode: 0},
		enginetest.ScriptedJob{ExitCode: 0},
	)
	s := NewScheduler(Config{Runner: runner, MaxConcurrent: 1})

	var jobs []*SchedulerJob
	for i := 0; i < 3; i++ {
		j, err := s.Submit([]string{"true"})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		jobs = append(jobs, j)
	}

	var running, waiting []*SchedulerJob
	completed := make(map[string]struct{})
	running, waiting, err := s.Tick(ctx, running, waiting, completed)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(running) != 1 || len(waiting) != 2 {
		t.Fatalf("after first tick: running=%d waiting=%d, want 1/2", len(running), len(waiting))
	}

	// Keep ticking with the lists the first Tick returned; the scheduler
	// does not retain them itself, so a fresh runToCompletion would lose
	// the running and waiting jobs.
	for i := 0; i < 1000 && (len(running) > 0 || len(waiting) > 0); i++ {
		running, waiting, err = s.Tick(ctx, running, waiting, completed)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	for i, j := range jobs {
		if j.State() != Finished {
			t.Errorf("job %d state = %v, want Finished", i, j.State())
		}
	}
}

func TestSchedulerStartStopDrainsRunningJobs(t *testing.T) {
	runner := enginetest.NewFakeRunner(enginetest.ScriptedJob{ExitCode: 0})
	s := NewScheduler(Config{Runner: runner, PollInterval: 5 * time.Millisecond})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job, err := s.Submit([]string{"true"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s.Stop()
	if job.State() != Finished {
		t.Fatalf("job.State() after Stop() = %v, want Finished", job.State())
	}
	if _, err := s.Submit([]string{"true"}); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("Submit after Stop: err = %v, want ErrSchedulerStopped", err)
	}
}
