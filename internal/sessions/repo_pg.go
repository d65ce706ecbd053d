package sessions

import (
	"context"
	"database/sql"
	"errors"

	"snaudit-backend/internal/engine"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateSession inserts the session row and every task in one transaction.
func (r *PGRepo) CreateSession(ctx context.Context, session Session, tasks []Task) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	const insertSession = `
INSERT INTO action_sessions (id, report_id, status, cursor_pos, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, insertSession,
		session.ID,
		session.ReportID,
		session.Status,
		session.Cursor,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return err
	}

	const insertTask = `
INSERT INTO execution_tasks
    (id, session_id, position, user_sys_id, user_name, action, reason,
     monthly_saving, confidence_pct, status, attempts, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	for _, task := range tasks {
		_, err = tx.ExecContext(ctx, insertTask,
			task.ID,
			task.SessionID,
			task.Position,
			task.UserSysID,
			task.UserName,
			string(task.Action),
			task.Reason,
			task.MonthlySaving,
			task.ConfidencePct,
			task.Status,
			task.Attempts,
			task.CreatedAt,
			task.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// GetSession returns one session by ID.
func (r *PGRepo) GetSession(ctx context.Context, sessionID string) (Session, error) {
	const query = `
SELECT id, report_id, status, cursor_pos, created_at, updated_at
FROM action_sessions
WHERE id = $1
LIMIT 1`
	var s Session
	err := r.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID,
		&s.ReportID,
		&s.Status,
		&s.Cursor,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// ListTasks returns the session's tasks ordered by position.
func (r *PGRepo) ListTasks(ctx context.Context, sessionID string) ([]Task, error) {
	const query = `
SELECT id, session_id, position, user_sys_id, user_name, action, reason,
       monthly_saving, confidence_pct, status, attempts, result, last_error,
       executed_at, created_at, updated_at
FROM execution_tasks
WHERE session_id = $1
ORDER BY position ASC`
	rows, err := r.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetTask returns one task scoped to its session.
func (r *PGRepo) GetTask(ctx context.Context, sessionID, taskID string) (Task, error) {
	const query = `
SELECT id, session_id, position, user_sys_id, user_name, action, reason,
       monthly_saving, confidence_pct, status, attempts, result, last_error,
       executed_at, created_at, updated_at
FROM execution_tasks
WHERE id = $1 AND session_id = $2
LIMIT 1`
	task, err := scanTask(r.DB.QueryRowContext(ctx, query, taskID, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

// UpdateSession rewrites status and cursor.
func (r *PGRepo) UpdateSession(ctx context.Context, sessionID, status string, cursor int) error {
	const query = `
UPDATE action_sessions
SET status = $1, cursor_pos = $2, updated_at = now()
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, status, cursor, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTask rewrites the task's execution fields.
func (r *PGRepo) UpdateTask(ctx context.Context, task Task) error {
	const query = `
UPDATE execution_tasks
SET status = $1,
    attempts = $2,
    result = NULLIF($3, ''),
    last_error = NULLIF($4, ''),
    executed_at = $5,
    updated_at = now()
WHERE id = $6 AND session_id = $7`
	res, err := r.DB.ExecContext(ctx, query,
		task.Status,
		task.Attempts,
		task.Result,
		task.LastError,
		task.ExecutedAt,
		task.ID,
		task.SessionID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (Task, error) {
	var task Task
	var action string
	var monthlySaving, confidencePct sql.NullFloat64
	var result, lastError sql.NullString
	var executedAt sql.NullTime
	err := row.Scan(
		&task.ID,
		&task.SessionID,
		&task.Position,
		&task.UserSysID,
		&task.UserName,
		&action,
		&task.Reason,
		&monthlySaving,
		&confidencePct,
		&task.Status,
		&task.Attempts,
		&result,
		&lastError,
		&executedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	task.Action = engine.Action(action)
	if monthlySaving.Valid {
		task.MonthlySaving = monthlySaving.Float64
	}
	if confidencePct.Valid {
		task.ConfidencePct = int(confidencePct.Float64)
	}
	if result.Valid {
		task.Result = result.String
	}
	if lastError.Valid {
		task.LastError = lastError.String
	}
	if executedAt.Valid {
		t := executedAt.Time
		task.ExecutedAt = &t
	}
	return task, nil
}

var _ Repo = (*PGRepo)(nil)
