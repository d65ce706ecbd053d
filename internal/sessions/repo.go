package sessions

import "context"

// Repo persists execution sessions and their tasks.
type Repo interface {
	// CreateSession stores the session and all of its tasks atomically.
	CreateSession(ctx context.Context, session Session, tasks []Task) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	// ListTasks returns the session's tasks in execution order.
	ListTasks(ctx context.Context, sessionID string) ([]Task, error)
	GetTask(ctx context.Context, sessionID, taskID string) (Task, error)
	// UpdateSession rewrites the session status and cursor.
	UpdateSession(ctx context.Context, sessionID, status string, cursor int) error
	// UpdateTask rewrites the task's mutable execution fields.
	UpdateTask(ctx context.Context, task Task) error
}
