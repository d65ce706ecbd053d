package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"snaudit-backend/internal/directory"
	"snaudit-backend/internal/engine"
	"snaudit-backend/internal/llm"
	"snaudit-backend/internal/queue"
	"snaudit-backend/internal/shared/metrics"
	"snaudit-backend/internal/shared/storage/object"
	"snaudit-backend/internal/shared/telemetry"
	"snaudit-backend/internal/shared/util"
	"snaudit-backend/internal/snow"
)

// messageVersion is stamped on queue messages for forward compatibility.
const messageVersion = 1

// SnapshotSource provides the cached directory snapshot and a way to
// refresh it from the instance when the cache is empty.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]engine.UserRecord, error)
	Sync(ctx context.Context) (directory.SyncResult, error)
}

// CostSource provides the effective license cost table.
type CostSource interface {
	Effective(ctx context.Context) (map[string]float64, error)
}

// Service owns the report-run lifecycle.
type Service struct {
	Repo     Repo
	Snapshot SnapshotSource
	Costs    CostSource
	Store    object.ObjectStore
	Queue    queue.Client
	LLM      llm.Client
	Params   engine.Params
}

// Start creates a queued run and schedules generation. Generation goes
// through the queue when one is configured, otherwise an in-process
// goroutine picks it up.
func (s *Service) Start(ctx context.Context) (ReportRun, error) {
	if s.Repo == nil {
		return ReportRun{}, errors.New("reports: repo not configured")
	}

	run := ReportRun{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, run); err != nil {
		return ReportRun{}, err
	}
	metrics.IncReportRunStarted()
	telemetry.Info("report.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"run_id":     run.ID,
		"status":     StatusQueued,
	})

	s.dispatch(ctx, run.ID)
	return run, nil
}

func (s *Service) dispatch(ctx context.Context, runID string) {
	if s.Queue != nil {
		msg := queue.Message{
			RunID:      runID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339Nano),
			Version:    messageVersion,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Error("report.enqueue_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"error":      err.Error(),
		})
	}
	go s.completeAsync(backgroundWithRequestID(ctx), runID)
}

func (s *Service) completeAsync(ctx context.Context, runID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failRun(ctx, runID, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	if err := s.ProcessRun(ctx, runID); err != nil {
		telemetry.Error("report.process_error", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"error":      err.Error(),
		})
	}
}

// ProcessRun generates the report for one run. Domain failures are
// persisted on the run and return nil; the returned error covers
// infrastructure problems where nothing could be recorded, so queue
// consumers can retry the message.
func (s *Service) ProcessRun(ctx context.Context, runID string) error {
	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("run lookup %s: %w", runID, err)
	}
	if run.Status == StatusCompleted || run.Status == StatusFailed {
		telemetry.Info("report.skip", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"status":     run.Status,
		})
		return nil
	}

	startedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, runID, StatusProcessing, nil, nil, nil, nil, &startedAt, nil); err != nil {
		return fmt.Errorf("set processing failed: %w", err)
	}
	telemetry.Info("report.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	records, err := s.loadSnapshot(ctx)
	if err != nil {
		s.failRun(ctx, runID, err, &startedAt)
		return nil
	}

	params := s.Params
	if s.Costs != nil {
		table, err := s.Costs.Effective(ctx)
		if err != nil {
			s.failRun(ctx, runID, fmt.Errorf("cost table lookup: %w", err), &startedAt)
			return nil
		}
		params.CostTable = table
	}

	report, err := engine.Evaluate(records, time.Now().UTC(), params)
	if err != nil {
		s.failRun(ctx, runID, fmt.Errorf("engine evaluate: %w", err), &startedAt)
		return nil
	}

	s.attachInsights(ctx, report)

	size := len(records)
	completedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, runID, StatusCompleted, report, &size, nil, nil, nil, &completedAt); err != nil {
		return fmt.Errorf("persist report failed: %w", err)
	}
	s.archive(ctx, runID, report)

	metrics.IncReportRunCompleted()
	metrics.ObserveReportRunDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("report.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"users":             size,
		"decisions":         len(report.Decisions),
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// loadSnapshot reads the cached directory snapshot, falling back to a live
// sync when the cache is empty and an instance client is wired.
func (s *Service) loadSnapshot(ctx context.Context) ([]engine.UserRecord, error) {
	if s.Snapshot == nil {
		return nil, errors.New("directory snapshot source not configured")
	}
	records, err := s.Snapshot.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory snapshot: %w", err)
	}
	if len(records) > 0 {
		return records, nil
	}

	if _, err := s.Snapshot.Sync(ctx); err != nil {
		if errors.Is(err, directory.ErrNoSource) {
			return nil, engine.ErrEmptySnapshot
		}
		return nil, err
	}
	records, err = s.Snapshot.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory snapshot: %w", err)
	}
	if len(records) == 0 {
		return nil, engine.ErrEmptySnapshot
	}
	return records, nil
}

func (s *Service) attachInsights(ctx context.Context, report *engine.Report) {
	if s.LLM == nil {
		return
	}
	narrative, err := s.LLM.SummarizeReport(ctx, summaryInput(report))
	if err != nil {
		telemetry.Warn("report.insights_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"error":      sanitizeError(err),
		})
		return
	}
	report.AIInsights = narrative
}

func summaryInput(report *engine.Report) llm.SummaryInput {
	actionCounts := make(map[string]int, len(engine.Actions()))
	for _, d := range report.Decisions {
		actionCounts[string(d.Action)]++
	}
	wasteRatio := 0.0
	if report.Financials.CurrentMonthlyCost > 0 {
		wasteRatio = report.Financials.MonthlySavingsPotential / report.Financials.CurrentMonthlyCost
	}
	return llm.SummaryInput{
		TotalUsers:      report.Summary.TotalUsers,
		ActiveUsers:     report.Summary.ActiveUsers,
		InactiveUsers:   report.Summary.InactiveUsers,
		DecisionCount:   len(report.Decisions),
		AutoEligible:    report.Automation.AutoEligible,
		PendingApproval: report.Automation.PendingApprovals,
		ManualReview:    report.Automation.ManualReview,
		MonthlySavings:  report.Financials.MonthlySavingsPotential,
		AnnualSavings:   report.Financials.AnnualSavingsPotential,
		WasteRatio:      wasteRatio,
		RiskScore:       float64(report.RiskScore),
		ActionCounts:    actionCounts,
	}
}

// archive writes the report document to the object store. Postgres holds
// the authoritative copy, so archive failures only log.
func (s *Service) archive(ctx context.Context, runID string, report *engine.Report) {
	if s.Store == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		telemetry.Error("report.archive_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"error":      err.Error(),
		})
		return
	}
	key := "reports/" + runID + ".json"
	if _, err := s.Store.SaveWithKey(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		telemetry.Error("report.archive_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"key":        key,
			"error":      sanitizeError(err),
		})
		return
	}
	telemetry.Info("report.archived", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"run_id":      runID,
		"key":         key,
		"fingerprint": util.HashDocument(report),
	})
}

func (s *Service) failRun(ctx context.Context, runID string, err error, startedAt *time.Time) {
	code := classifyRunFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.UpdateStatus(context.Background(), runID, StatusFailed, nil, nil, &code, &msg, nil, &completedAt); updateErr != nil {
		telemetry.Error("report.fail_update_error", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"error":      updateErr.Error(),
		})
	}
	metrics.IncReportRunFailed()
	if startedAt != nil {
		metrics.ObserveReportRunDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("report.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"error":             msg,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

// GetByID returns a run by ID.
func (s *Service) GetByID(ctx context.Context, runID string) (ReportRun, error) {
	if runID == "" {
		return ReportRun{}, errors.New("runID is required")
	}
	return s.Repo.GetByID(ctx, runID)
}

// LatestCompleted returns the most recent completed run.
func (s *Service) LatestCompleted(ctx context.Context) (ReportRun, error) {
	return s.Repo.LatestCompleted(ctx)
}

// List returns run metadata newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]ReportRun, error) {
	return s.Repo.List(ctx, limit, offset)
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func classifyRunFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, engine.ErrEmptySnapshot) {
		return ErrorCodeSnapshotEmpty
	}
	if errors.Is(err, snow.ErrCredentials) || errors.Is(err, snow.ErrTableMissing) {
		return ErrorCodeSnapshotFetch
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "snapshot") || strings.Contains(msg, "directory"):
		return ErrorCodeSnapshotFetch
	case strings.Contains(msg, "engine"):
		return ErrorCodeEngine
	default:
		return ErrorCodeInternal
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
