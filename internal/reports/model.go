package reports

import (
	"time"

	"snaudit-backend/internal/engine"
)

// Run statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ReportRun tracks one decision-report generation job. The report document
// itself is immutable once the run completes; a fresh run is the only way
// to get fresh numbers.
type ReportRun struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Report       *engine.Report `json:"report,omitempty"`
	SnapshotSize int            `json:"snapshotSize"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
