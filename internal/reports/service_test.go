package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"snaudit-backend/internal/directory"
	"snaudit-backend/internal/engine"
	"snaudit-backend/internal/llm"
	"snaudit-backend/internal/queue"
	"snaudit-backend/internal/snow"
)

type stubSnapshot struct {
	records   []engine.UserRecord
	err       error
	syncErr   error
	afterSync []engine.UserRecord
	synced    bool
}

func (s *stubSnapshot) Snapshot(ctx context.Context) ([]engine.UserRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.synced {
		return s.afterSync, nil
	}
	return s.records, nil
}

func (s *stubSnapshot) Sync(ctx context.Context) (directory.SyncResult, error) {
	if s.syncErr != nil {
		return directory.SyncResult{}, s.syncErr
	}
	s.synced = true
	return directory.SyncResult{Synced: len(s.afterSync), SyncedAt: time.Now().UTC()}, nil
}

type stubCosts struct {
	table map[string]float64
	err   error
}

func (s stubCosts) Effective(ctx context.Context) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.table, nil
}

type stubLLM struct {
	summary string
	err     error
	calls   int
}

func (s *stubLLM) SummarizeReport(ctx context.Context, input llm.SummaryInput) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

type stubQueue struct {
	msgs []queue.Message
	err  error
}

func (s *stubQueue) Send(ctx context.Context, msg queue.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) SaveWithKey(ctx context.Context, storageKey, contentType string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = data
	return int64(len(data)), nil
}

func (s *memStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[storageKey]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func snapshotRecords() []engine.UserRecord {
	recent := time.Now().UTC().AddDate(0, 0, -5).Format("2006-01-02 15:04:05")
	return []engine.UserRecord{
		{
			SysID: "aaaa000000000001", UserName: "ghost", Email: "ghost@corp.com",
			Department: "IT", LicenseType: "itil", Active: true,
			LastLogin: "", TransactionCount: 0, Roles: []string{"itil"}, LicenseCost: 100,
		},
		{
			SysID: "aaaa000000000002", UserName: "steady", Email: "steady@corp.com",
			Department: "IT", LicenseType: "itil", Active: true,
			LastLogin: recent, TransactionCount: 80, Roles: []string{"itil"}, LicenseCost: 100,
		},
	}
}

func newTestService() (*Service, *MemoryRepo, *memStore, *stubLLM, *stubQueue) {
	repo := NewMemoryRepo()
	store := newMemStore()
	llmClient := &stubLLM{summary: "Ghost accounts dominate the waste."}
	q := &stubQueue{}
	svc := &Service{
		Repo:     repo,
		Snapshot: &stubSnapshot{records: snapshotRecords()},
		Costs:    stubCosts{table: engine.DefaultCostTable()},
		Store:    store,
		Queue:    q,
		LLM:      llmClient,
	}
	return svc, repo, store, llmClient, q
}

func TestStartEnqueuesRun(t *testing.T) {
	svc, repo, _, _, q := newTestService()
	ctx := WithRequestID(context.Background(), "req-42")

	run, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.Status != StatusQueued {
		t.Fatalf("status = %q, want queued", run.Status)
	}

	stored, err := repo.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != StatusQueued {
		t.Fatalf("stored status = %q", stored.Status)
	}

	if len(q.msgs) != 1 {
		t.Fatalf("queue messages = %d, want 1", len(q.msgs))
	}
	if q.msgs[0].RunID != run.ID {
		t.Fatalf("message run id = %q, want %q", q.msgs[0].RunID, run.ID)
	}
	if q.msgs[0].RequestID != "req-42" {
		t.Fatalf("message request id = %q", q.msgs[0].RequestID)
	}
}

func TestProcessRunCompletes(t *testing.T) {
	svc, repo, store, llmClient, _ := newTestService()
	run, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	stored, err := repo.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %q (code %q: %s)", stored.Status, stored.ErrorCode, stored.ErrorMessage)
	}
	if stored.Report == nil {
		t.Fatal("report missing on completed run")
	}
	if stored.Report.Summary.TotalUsers != 2 {
		t.Fatalf("total users = %d", stored.Report.Summary.TotalUsers)
	}
	if len(stored.Report.Decisions) == 0 {
		t.Fatal("expected at least one decision for the never-logged-in user")
	}
	if stored.Report.AIInsights != "Ghost accounts dominate the waste." {
		t.Fatalf("insights = %q", stored.Report.AIInsights)
	}
	if llmClient.calls != 1 {
		t.Fatalf("llm calls = %d", llmClient.calls)
	}
	if stored.SnapshotSize != 2 {
		t.Fatalf("snapshot size = %d", stored.SnapshotSize)
	}
	if stored.StartedAt == nil || stored.CompletedAt == nil {
		t.Fatalf("timestamps missing: started=%v completed=%v", stored.StartedAt, stored.CompletedAt)
	}

	// Archived copy must match the persisted document.
	body, err := store.Open(context.Background(), "reports/"+run.ID+".json")
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	defer body.Close()
	var archived engine.Report
	if err := json.NewDecoder(body).Decode(&archived); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if archived.Summary.TotalUsers != stored.Report.Summary.TotalUsers {
		t.Fatalf("archive total users = %d", archived.Summary.TotalUsers)
	}
}

func TestStartFallsBackToGoroutineWhenEnqueueFails(t *testing.T) {
	svc, repo, _, _, q := newTestService()
	q.err = errors.New("sqs send message: throttled")

	run, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := repo.GetByID(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Status == StatusCompleted {
			break
		}
		if stored.Status == StatusFailed {
			t.Fatalf("run failed: %s %s", stored.ErrorCode, stored.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("run stuck in %q", stored.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProcessRunFailsOnEmptySnapshot(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	svc.Snapshot = &stubSnapshot{syncErr: directory.ErrNoSource}

	run, _ := svc.Start(context.Background())
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), run.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("status = %q", stored.Status)
	}
	if stored.ErrorCode != ErrorCodeSnapshotEmpty {
		t.Fatalf("error code = %q", stored.ErrorCode)
	}
	if stored.CompletedAt == nil {
		t.Fatal("completed at missing on failed run")
	}
}

func TestProcessRunSyncsWhenCacheEmpty(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	snap := &stubSnapshot{afterSync: snapshotRecords()}
	svc.Snapshot = snap

	run, _ := svc.Start(context.Background())
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	if !snap.synced {
		t.Fatal("expected a live sync for the empty cache")
	}
	stored, _ := repo.GetByID(context.Background(), run.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %q (code %q: %s)", stored.Status, stored.ErrorCode, stored.ErrorMessage)
	}
	if stored.SnapshotSize != 2 {
		t.Fatalf("snapshot size = %d", stored.SnapshotSize)
	}
}

func TestProcessRunFailsWhenSyncFails(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	svc.Snapshot = &stubSnapshot{
		syncErr: fmt.Errorf("directory: fetch users: %w", snow.ErrCredentials),
	}

	run, _ := svc.Start(context.Background())
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), run.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("status = %q", stored.Status)
	}
	if stored.ErrorCode != ErrorCodeSnapshotFetch {
		t.Fatalf("error code = %q", stored.ErrorCode)
	}
}

func TestProcessRunFailsOnCostTableError(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	svc.Costs = stubCosts{err: errors.New("pq: connection refused")}

	run, _ := svc.Start(context.Background())
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), run.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("status = %q", stored.Status)
	}
	if stored.ErrorCode != ErrorCodeInternal {
		t.Fatalf("error code = %q", stored.ErrorCode)
	}
}

func TestProcessRunInsightsFailOpen(t *testing.T) {
	svc, repo, _, llmClient, _ := newTestService()
	llmClient.err = errors.New("openai error: rate limited (requests)")

	run, _ := svc.Start(context.Background())
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), run.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %q, insight failures must not fail the run", stored.Status)
	}
	if stored.Report.AIInsights != "" {
		t.Fatalf("insights = %q, want empty", stored.Report.AIInsights)
	}
}

func TestProcessRunSkipsTerminalRun(t *testing.T) {
	svc, repo, _, llmClient, _ := newTestService()

	run, _ := svc.Start(context.Background())
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("first ProcessRun: %v", err)
	}
	first, _ := repo.GetByID(context.Background(), run.ID)

	// Redelivered queue message must not regenerate the report.
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("second ProcessRun: %v", err)
	}
	second, _ := repo.GetByID(context.Background(), run.ID)

	if llmClient.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", llmClient.calls)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("run touched on redelivery: %v vs %v", second.UpdatedAt, first.UpdatedAt)
	}
}

func TestClassifyRunFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"empty snapshot", engine.ErrEmptySnapshot, ErrorCodeSnapshotEmpty},
		{"wrapped empty snapshot", fmt.Errorf("engine evaluate: %w", engine.ErrEmptySnapshot), ErrorCodeSnapshotEmpty},
		{"credentials", fmt.Errorf("directory: fetch users: %w", snow.ErrCredentials), ErrorCodeSnapshotFetch},
		{"snapshot read", errors.New("directory snapshot: connection refused"), ErrorCodeSnapshotFetch},
		{"engine", errors.New("engine evaluate: bad params"), ErrorCodeEngine},
		{"other", errors.New("cost table lookup: pq: timeout"), ErrorCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyRunFailure(tc.err); got != tc.want {
				t.Fatalf("classifyRunFailure(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := sanitizeError(errors.New("line one\nline two\r\n" + long))
	if strings.ContainsAny(got, "\n\r") {
		t.Fatalf("newlines survived: %q", got)
	}
	if len(got) != 500 {
		t.Fatalf("len = %d, want 500", len(got))
	}
}
