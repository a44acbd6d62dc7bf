package execengine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by Scheduler.Submit/Start, checked with
// errors.Is by callers.
var (
	// ErrDuplicateName is returned by Submit when name duplicates a
	// previously submitted name.
	ErrDuplicateName = errors.New("execengine: duplicate job name")

	// ErrUnknownWaitFor is returned by Submit when wait_for references a
	// name that has never been submitted.
	ErrUnknownWaitFor = errors.New("execengine: unknown wait_for name")

	// ErrSchedulerStopped is returned by Submit once Stop has been called.
	// The distilled source silently accepts and never dispatches such
	// submissions; this port rejects them instead (see DESIGN.md Open
	// Question: concurrent submission to a stopped scheduler).
	ErrSchedulerStopped = errors.New("execengine: scheduler stopped")

	// ErrAlreadyStarted is returned by Start when called more than once.
	ErrAlreadyStarted = errors.New("execengine: scheduler already started")
)

// CycleError reports a structural dependency cycle found among Pipeline
// tasks at Run time. The distilled source does not detect cycles at all,
// which manifests as an indefinite hang; this port performs a topological
// pre-check and fails fast instead (see DESIGN.md Open Question: cycle
// detection).
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("execengine: dependency cycle among tasks: %s", strings.Join(e.Tasks, ", "))
}
