package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for tests and DB-less development.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]Session
	tasks    map[string][]Task // keyed by session ID, ordered by position
}

// NewMemoryRepo returns an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions: make(map[string]Session),
		tasks:    make(map[string][]Task),
	}
}

func (r *MemoryRepo) CreateSession(ctx context.Context, session Session, tasks []Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	copied := make([]Task, len(tasks))
	copy(copied, tasks)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Position < copied[j].Position })
	r.tasks[session.ID] = copied
	return nil
}

func (r *MemoryRepo) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (r *MemoryRepo) ListTasks(ctx context.Context, sessionID string) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks, ok := r.tasks[sessionID]
	if !ok {
		if _, exists := r.sessions[sessionID]; !exists {
			return nil, ErrNotFound
		}
		return nil, nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (r *MemoryRepo) GetTask(ctx context.Context, sessionID, taskID string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks[sessionID] {
		if task.ID == taskID {
			return task, nil
		}
	}
	return Task{}, ErrNotFound
}

func (r *MemoryRepo) UpdateSession(ctx context.Context, sessionID, status string, cursor int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Status = status
	session.Cursor = cursor
	session.UpdatedAt = time.Now().UTC()
	r.sessions[sessionID] = session
	return nil
}

func (r *MemoryRepo) UpdateTask(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks, ok := r.tasks[task.SessionID]
	if !ok {
		return ErrNotFound
	}
	for i, existing := range tasks {
		if existing.ID != task.ID {
			continue
		}
		existing.Status = task.Status
		existing.Attempts = task.Attempts
		existing.Result = task.Result
		existing.LastError = task.LastError
		existing.ExecutedAt = task.ExecutedAt
		existing.UpdatedAt = time.Now().UTC()
		tasks[i] = existing
		return nil
	}
	return ErrNotFound
}

var _ Repo = (*MemoryRepo)(nil)
