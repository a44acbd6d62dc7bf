package execengine

import "context"

// Runner is the external collaborator that actually forks/execs a wrapper
// script. It is the only seam the core scheduling logic depends on for
// doing real work; see internal/processrunner for the concrete
// os/exec-backed implementation, and internal/enginetest for a
// deterministic fake used by the test suite.
type Runner interface {
	// Submit starts argv (argv[0] is typically a wrapper script produced by
	// ScriptBuilder) with the given working directory and returns an opaque
	// job id. It must not block until completion.
	Submit(ctx context.Context, argv []string, cwd string) (id string, err error)

	// IsRunning reports whether the job is still running.
	IsRunning(id string) (bool, error)

	// ExitCode returns the job's exit code. Only valid once IsRunning
	// reports false.
	ExitCode(id string) (int, error)

	// Stdout returns the job's final captured stdout. Only valid once
	// IsRunning reports false.
	Stdout(id string) (string, error)

	// Terminate asks the runner to kill the job. Used for cleanup; the
	// Scheduler itself never calls this (Stop does not kill in-flight
	// jobs, per spec).
	Terminate(id string) error
}
