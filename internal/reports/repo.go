package reports

import (
	"context"
	"time"

	"snaudit-backend/internal/engine"
)

// Repo persists report runs.
type Repo interface {
	Create(ctx context.Context, run ReportRun) error
	GetByID(ctx context.Context, runID string) (ReportRun, error)
	// LatestCompleted returns the most recently completed run, report included.
	LatestCompleted(ctx context.Context) (ReportRun, error)
	// List returns run metadata newest-first. Report documents are omitted;
	// fetch them one run at a time.
	List(ctx context.Context, limit, offset int) ([]ReportRun, error)
	// UpdateStatus transitions a run. Nil arguments leave the stored column
	// untouched; started_at and completed_at fall back to now() on the
	// matching transition when not supplied.
	UpdateStatus(ctx context.Context, runID, status string, report *engine.Report, snapshotSize *int, errorCode, errorMessage *string, startedAt, completedAt *time.Time) error
}
