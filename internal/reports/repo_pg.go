package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"snaudit-backend/internal/engine"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new queued run.
func (r *PGRepo) Create(ctx context.Context, run ReportRun) error {
	const query = `
INSERT INTO report_runs (id, status, snapshot_size, created_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.SnapshotSize,
		run.CreatedAt,
	)
	return err
}

// GetByID returns a run by ID, report document included.
func (r *PGRepo) GetByID(ctx context.Context, runID string) (ReportRun, error) {
	const query = `
SELECT id, status, report, snapshot_size, error_code, error_message,
       started_at, completed_at, created_at, updated_at
FROM report_runs
WHERE id = $1
LIMIT 1`
	return r.scanRun(r.DB.QueryRowContext(ctx, query, runID))
}

// LatestCompleted returns the most recently completed run.
func (r *PGRepo) LatestCompleted(ctx context.Context) (ReportRun, error) {
	const query = `
SELECT id, status, report, snapshot_size, error_code, error_message,
       started_at, completed_at, created_at, updated_at
FROM report_runs
WHERE status = 'completed'
ORDER BY completed_at DESC
LIMIT 1`
	return r.scanRun(r.DB.QueryRowContext(ctx, query))
}

// List returns run metadata newest-first without the report payload.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]ReportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, status, snapshot_size, error_code, error_message,
       started_at, completed_at, created_at, updated_at
FROM report_runs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var run ReportRun
		var errorCode, errorMessage sql.NullString
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(
			&run.ID,
			&run.Status,
			&run.SnapshotSize,
			&errorCode,
			&errorMessage,
			&startedAt,
			&completedAt,
			&run.CreatedAt,
			&run.UpdatedAt,
		); err != nil {
			return nil, err
		}
		applyNullables(&run, errorCode, errorMessage, startedAt, completedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateStatus transitions a run, filling started_at/completed_at when the
// caller leaves them nil on the matching transition.
func (r *PGRepo) UpdateStatus(ctx context.Context, runID, status string, report *engine.Report, snapshotSize *int, errorCode, errorMessage *string, startedAt, completedAt *time.Time) error {
	const query = `
UPDATE report_runs
SET status = $1,
    report = COALESCE($2::jsonb, report),
    snapshot_size = COALESCE($3::integer, snapshot_size),
    error_code = COALESCE($4::text, error_code),
    error_message = COALESCE($5::text, error_message),
    started_at = CASE
        WHEN $6::timestamptz IS NOT NULL THEN $6::timestamptz
        WHEN $1 = 'processing' AND started_at IS NULL THEN now()
        ELSE started_at
    END,
    completed_at = CASE
        WHEN $7::timestamptz IS NOT NULL THEN $7::timestamptz
        WHEN ($1 = 'completed' OR $1 = 'failed') AND completed_at IS NULL THEN now()
        ELSE completed_at
    END,
    updated_at = now()
WHERE id = $8::uuid`

	var payload any
	if report != nil {
		encoded, err := json.Marshal(report)
		if err != nil {
			return err
		}
		payload = encoded
	}

	res, err := r.DB.ExecContext(ctx, query, status, payload, snapshotSize, errorCode, errorMessage, startedAt, completedAt, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanRun(row rowScanner) (ReportRun, error) {
	var run ReportRun
	var reportRaw []byte
	var errorCode, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.Status,
		&reportRaw,
		&run.SnapshotSize,
		&errorCode,
		&errorMessage,
		&startedAt,
		&completedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportRun{}, ErrNotFound
		}
		return ReportRun{}, err
	}
	if len(reportRaw) > 0 {
		var report engine.Report
		if err := json.Unmarshal(reportRaw, &report); err == nil {
			run.Report = &report
		}
	}
	applyNullables(&run, errorCode, errorMessage, startedAt, completedAt)
	return run, nil
}

func applyNullables(run *ReportRun, errorCode, errorMessage sql.NullString, startedAt, completedAt sql.NullTime) {
	if errorCode.Valid {
		run.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		run.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
}

var _ Repo = (*PGRepo)(nil)
