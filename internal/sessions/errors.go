package sessions

import (
	"fmt"
	"strings"
)

type errNotFound struct{}

func (errNotFound) Error() string { return "session or task not found" }

// ErrNotFound is returned when a session or task id does not exist.
var ErrNotFound = errNotFound{}

type errRunNotCompleted struct{}

func (errRunNotCompleted) Error() string { return "report run is not completed" }

// ErrRunNotCompleted is returned when a session references a report run
// that has not finished successfully.
var ErrRunNotCompleted = errRunNotCompleted{}

type errSessionBusy struct{}

func (errSessionBusy) Error() string { return "another session run is in progress" }

// ErrSessionBusy is returned when an execution run is requested while the
// orchestrator is already draining a session.
var ErrSessionBusy = errSessionBusy{}

type errTaskNotRetryable struct{}

func (errTaskNotRetryable) Error() string { return "task is not in a retryable state" }

// ErrTaskNotRetryable is returned when retry targets a task that did not
// fail outright. Partial results need operator review, not a blind retry.
var ErrTaskNotRetryable = errTaskNotRetryable{}

type errNoExecutor struct{}

func (errNoExecutor) Error() string { return "no instance client configured" }

// ErrNoExecutor is returned when execution is requested but the process
// came up without ServiceNow credentials.
var ErrNoExecutor = errNoExecutor{}

type errStaleDecision struct{}

func (errStaleDecision) Error() string { return "decision is stale: user missing from directory snapshot" }

// ErrStaleDecision marks tasks whose subject disappeared from the directory
// between report generation and execution.
var ErrStaleDecision = errStaleDecision{}

// SelectionError reports which requested users could not be turned into
// execution tasks, bucketed by rejection cause.
type SelectionError struct {
	Missing  []string // no decision for this sys_id in the report
	Rejected []string // decision confidence below the bulk threshold
	Invalid  []string // malformed sys_id
}

func (e *SelectionError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d without a decision", len(e.Missing)))
	}
	if len(e.Rejected) > 0 {
		parts = append(parts, fmt.Sprintf("%d below the bulk confidence threshold", len(e.Rejected)))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed", len(e.Invalid)))
	}
	if len(parts) == 0 {
		return "selection rejected"
	}
	return "selection rejected: " + strings.Join(parts, ", ")
}
