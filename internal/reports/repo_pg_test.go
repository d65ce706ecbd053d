package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"snaudit-backend/internal/engine"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func runColumns() []string {
	return []string{
		"id", "status", "report", "snapshot_size", "error_code", "error_message",
		"started_at", "completed_at", "created_at", "updated_at",
	}
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO report_runs").
		WithArgs("0b7f5c0e-23aa-4f4e-9c35-111111111111", StatusQueued, 0, createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), ReportRun{
		ID:        "0b7f5c0e-23aa-4f4e-9c35-111111111111",
		Status:    StatusQueued,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdateStatusCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)
	completedAt := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	size := 3

	mock.ExpectExec("UPDATE report_runs").
		WithArgs(StatusCompleted, sqlmock.AnyArg(), 3, nil, nil, nil, completedAt, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	report := &engine.Report{Summary: engine.Summary{TotalUsers: 3}}
	err := repo.UpdateStatus(context.Background(), "run-1", StatusCompleted, report, &size, nil, nil, nil, &completedAt)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdateStatusFailedRecordsError(t *testing.T) {
	repo, mock := newMockRepo(t)
	code := ErrorCodeSnapshotEmpty
	msg := "engine: empty user snapshot"

	mock.ExpectExec("UPDATE report_runs").
		WithArgs(StatusFailed, nil, nil, code, msg, nil, sqlmock.AnyArg(), "run-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	completedAt := time.Now().UTC()
	err := repo.UpdateStatus(context.Background(), "run-2", StatusFailed, nil, nil, &code, &msg, nil, &completedAt)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdateStatusMissingRun(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE report_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", StatusProcessing, nil, nil, nil, nil, nil, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoGetByIDParsesReport(t *testing.T) {
	repo, mock := newMockRepo(t)
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startedAt := createdAt.Add(time.Second)
	completedAt := createdAt.Add(5 * time.Second)

	payload, err := json.Marshal(&engine.Report{
		Summary:   engine.Summary{TotalUsers: 3, InactiveUsers: 2},
		RiskScore: 40,
	})
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	mock.ExpectQuery("WHERE id = \\$1").
		WithArgs("run-3").
		WillReturnRows(sqlmock.NewRows(runColumns()).
			AddRow("run-3", StatusCompleted, payload, 3, nil, nil, startedAt, completedAt, createdAt, completedAt))

	run, err := repo.GetByID(context.Background(), "run-3")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Fatalf("status = %q", run.Status)
	}
	if run.Report == nil || run.Report.Summary.TotalUsers != 3 {
		t.Fatalf("report not parsed: %+v", run.Report)
	}
	if run.SnapshotSize != 3 {
		t.Fatalf("snapshot size = %d", run.SnapshotSize)
	}
	if run.StartedAt == nil || !run.StartedAt.Equal(startedAt) {
		t.Fatalf("started at = %v", run.StartedAt)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runColumns()))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoLatestCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := createdAt.Add(3 * time.Second)

	mock.ExpectQuery("WHERE status = 'completed'").
		WillReturnRows(sqlmock.NewRows(runColumns()).
			AddRow("run-4", StatusCompleted, nil, 10, nil, nil, createdAt, completedAt, createdAt, completedAt))

	run, err := repo.LatestCompleted(context.Background())
	if err != nil {
		t.Fatalf("LatestCompleted: %v", err)
	}
	if run.ID != "run-4" {
		t.Fatalf("run id = %q", run.ID)
	}
	if run.Report != nil {
		t.Fatalf("expected nil report for null column, got %+v", run.Report)
	}
}

func TestPGRepoListClampsAndOmitsReport(t *testing.T) {
	repo, mock := newMockRepo(t)
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{
		"id", "status", "snapshot_size", "error_code", "error_message",
		"started_at", "completed_at", "created_at", "updated_at",
	}
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("run-5", StatusFailed, 0, ErrorCodeEngine, "engine evaluate: boom", nil, createdAt, createdAt, createdAt))

	runs, err := repo.List(context.Background(), 0, -5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	if runs[0].ErrorCode != ErrorCodeEngine {
		t.Fatalf("error code = %q", runs[0].ErrorCode)
	}
	if runs[0].StartedAt != nil {
		t.Fatalf("expected nil started at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
