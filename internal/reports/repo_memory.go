package reports

import (
	"context"
	"sort"
	"sync"
	"time"

	"snaudit-backend/internal/engine"
)

// MemoryRepo is an in-memory Repo for dev mode and tests.
type MemoryRepo struct {
	mu   sync.Mutex
	runs map[string]ReportRun
}

// NewMemoryRepo returns an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{runs: make(map[string]ReportRun)}
}

func (m *MemoryRepo) Create(ctx context.Context, run ReportRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryRepo) GetByID(ctx context.Context, runID string) (ReportRun, error) {
	if err := ctx.Err(); err != nil {
		return ReportRun{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ReportRun{}, ErrNotFound
	}
	return run, nil
}

func (m *MemoryRepo) LatestCompleted(ctx context.Context) (ReportRun, error) {
	if err := ctx.Err(); err != nil {
		return ReportRun{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest ReportRun
	found := false
	for _, run := range m.runs {
		if run.Status != StatusCompleted || run.CompletedAt == nil {
			continue
		}
		if !found || run.CompletedAt.After(*latest.CompletedAt) {
			latest = run
			found = true
		}
	}
	if !found {
		return ReportRun{}, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryRepo) List(ctx context.Context, limit, offset int) ([]ReportRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]ReportRun, 0, len(m.runs))
	for _, run := range m.runs {
		run.Report = nil
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if offset >= len(runs) {
		return []ReportRun{}, nil
	}
	runs = runs[offset:]
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryRepo) UpdateStatus(ctx context.Context, runID, status string, report *engine.Report, snapshotSize *int, errorCode, errorMessage *string, startedAt, completedAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	if report != nil {
		run.Report = report
	}
	if snapshotSize != nil {
		run.SnapshotSize = *snapshotSize
	}
	if errorCode != nil {
		run.ErrorCode = *errorCode
	}
	if errorMessage != nil {
		run.ErrorMessage = *errorMessage
	}
	switch {
	case startedAt != nil:
		t := *startedAt
		run.StartedAt = &t
	case status == StatusProcessing && run.StartedAt == nil:
		t := now
		run.StartedAt = &t
	}
	switch {
	case completedAt != nil:
		t := *completedAt
		run.CompletedAt = &t
	case (status == StatusCompleted || status == StatusFailed) && run.CompletedAt == nil:
		t := now
		run.CompletedAt = &t
	}
	run.UpdatedAt = now
	m.runs[runID] = run
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
