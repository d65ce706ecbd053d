package sessions

import (
	"time"

	"snaudit-backend/internal/engine"
)

// Session lifecycle.
const (
	SessionOpen    = "open"
	SessionRunning = "running"
	SessionDone    = "done"
)

// Task lifecycle. Retrying is a transient state set while a failed task is
// being re-executed; it settles back to succeeded or failed.
const (
	TaskPending   = "pending"
	TaskInFlight  = "in_flight"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
	TaskRetrying  = "retrying"
)

// Session is a bulk execution session built from one completed report run.
// Cursor is the position of the next task to execute; tasks before it are
// settled.
type Session struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"reportId"`
	Status    string    `json:"status"`
	Cursor    int       `json:"cursor"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is one license action queued for execution against the instance.
// Position fixes the execution order inside the session.
type Task struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"sessionId"`
	Position      int           `json:"position"`
	UserSysID     string        `json:"userSysId"`
	UserName      string        `json:"userName"`
	Action        engine.Action `json:"action"`
	Reason        string        `json:"reason"`
	MonthlySaving float64       `json:"monthlySaving"`
	ConfidencePct int           `json:"confidencePct"`
	Status        string        `json:"status"`
	Attempts      int           `json:"attempts"`
	Result        string        `json:"result,omitempty"`
	LastError     string        `json:"lastError,omitempty"`
	ExecutedAt    *time.Time    `json:"executedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Tally summarizes settled task outcomes for a session.
type Tally struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Partial   int `json:"partial"`
}

// TallyTasks buckets tasks into the run summary. Partial counts tasks that
// completed with a partial instance result; they are excluded from Succeeded.
func TallyTasks(tasks []Task) Tally {
	var t Tally
	for _, task := range tasks {
		switch task.Status {
		case TaskSucceeded:
			if task.Result == "partial" {
				t.Partial++
			} else {
				t.Succeeded++
			}
		case TaskFailed:
			t.Failed++
		}
	}
	return t
}
