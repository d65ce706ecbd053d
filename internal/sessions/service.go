package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"snaudit-backend/internal/directory"
	"snaudit-backend/internal/engine"
	"snaudit-backend/internal/reports"
	"snaudit-backend/internal/shared/metrics"
	"snaudit-backend/internal/shared/telemetry"
	"snaudit-backend/internal/snow"
)

// defaultExecTimeout bounds each instance write.
const defaultExecTimeout = 15 * time.Second

// ReportSource resolves the report run a session executes against.
type ReportSource interface {
	GetByID(ctx context.Context, runID string) (reports.ReportRun, error)
}

// DirectoryLookup resolves the current directory record for a user. A user
// missing here makes their decision stale: no write is attempted for it.
type DirectoryLookup interface {
	Lookup(ctx context.Context, sysID string) (directory.User, error)
}

// Executor performs license writes against the instance.
type Executor interface {
	SetUserInactive(ctx context.Context, sysID string) (snow.WriteResult, error)
	RemoveRole(ctx context.Context, sysID, role string) (snow.WriteResult, error)
	SetLicenseTier(ctx context.Context, sysID, tier string) (snow.WriteResult, error)
}

// ExecutionOutcome is the live result of a one-off execution. It is returned
// to the caller and never persisted.
type ExecutionOutcome struct {
	UserSysID string        `json:"userSysId"`
	Action    engine.Action `json:"action"`
	Status    string        `json:"status"`
	Message   string        `json:"message"`
}

// Service orchestrates bulk license actions. At most one execution runs at a
// time per process; concurrent attempts get ErrSessionBusy. Construct with
// NewService so the run slot is initialized.
type Service struct {
	Repo        Repo
	Reports     ReportSource
	Directory   DirectoryLookup
	Executor    Executor
	ExecTimeout time.Duration

	sem chan struct{}
}

// NewService wires an orchestrator with the default per-write timeout.
func NewService(repo Repo, reportSource ReportSource, dir DirectoryLookup, exec Executor) *Service {
	return &Service{
		Repo:        repo,
		Reports:     reportSource,
		Directory:   dir,
		Executor:    exec,
		ExecTimeout: defaultExecTimeout,
		sem:         make(chan struct{}, 1),
	}
}

// CreateSession builds an execution session from a completed report run.
// Selection is all-or-nothing: any user without a bulk-eligible decision
// rejects the whole request via *SelectionError.
func (s *Service) CreateSession(ctx context.Context, reportID string, userSysIDs []string) (Session, []Task, error) {
	run, err := s.Reports.GetByID(ctx, reportID)
	if err != nil {
		return Session{}, nil, fmt.Errorf("report run lookup: %w", err)
	}
	if run.Status != reports.StatusCompleted || run.Report == nil {
		return Session{}, nil, ErrRunNotCompleted
	}

	now := time.Now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		Status:    SessionOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var selErr SelectionError
	var tasks []Task
	seen := make(map[string]bool, len(userSysIDs))
	for _, sysID := range userSysIDs {
		sysID = strings.TrimSpace(sysID)
		if seen[sysID] {
			continue
		}
		seen[sysID] = true
		if snow.ValidateSysID(sysID) != nil {
			selErr.Invalid = append(selErr.Invalid, sysID)
			continue
		}
		decision, ok := run.Report.FindDecision(sysID)
		if !ok {
			selErr.Missing = append(selErr.Missing, sysID)
			continue
		}
		if !engine.BulkEligible(decision.ConfidencePct) {
			selErr.Rejected = append(selErr.Rejected, sysID)
			continue
		}
		tasks = append(tasks, Task{
			ID:            uuid.NewString(),
			SessionID:     session.ID,
			Position:      len(tasks),
			UserSysID:     decision.UserSysID,
			UserName:      decision.UserName,
			Action:        decision.Action,
			Reason:        decision.Reason,
			MonthlySaving: decision.MonthlySaving,
			ConfidencePct: decision.ConfidencePct,
			Status:        TaskPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if len(selErr.Missing)+len(selErr.Rejected)+len(selErr.Invalid) > 0 {
		return Session{}, nil, &selErr
	}
	if len(tasks) == 0 {
		return Session{}, nil, &SelectionError{}
	}

	if err := s.Repo.CreateSession(ctx, session, tasks); err != nil {
		return Session{}, nil, fmt.Errorf("persist session: %w", err)
	}
	telemetry.Info("session.created", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"session_id": session.ID,
		"report_id":  reportID,
		"tasks":      len(tasks),
	})
	return session, tasks, nil
}

// Get returns the session with its tasks and outcome tally.
func (s *Service) Get(ctx context.Context, sessionID string) (Session, []Task, Tally, error) {
	session, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, nil, Tally{}, err
	}
	tasks, err := s.Repo.ListTasks(ctx, sessionID)
	if err != nil {
		return Session{}, nil, Tally{}, err
	}
	return session, tasks, TallyTasks(tasks), nil
}

// Run drains the session's unsettled tasks in order, one instance write at a
// time. A concurrent run anywhere in the process is rejected with
// ErrSessionBusy. Re-running a finished session is a no-op.
func (s *Service) Run(ctx context.Context, sessionID string) (Tally, error) {
	if s.Executor == nil {
		return Tally{}, ErrNoExecutor
	}
	if !s.tryAcquire() {
		return Tally{}, ErrSessionBusy
	}
	defer s.release()
	return s.drain(ctx, sessionID)
}

// StartRun begins draining the session in the background. The caller gets an
// immediate not-found, busy, or no-executor error; task outcomes land in the
// store.
func (s *Service) StartRun(ctx context.Context, sessionID string) error {
	if s.Executor == nil {
		return ErrNoExecutor
	}
	if _, err := s.Repo.GetSession(ctx, sessionID); err != nil {
		return err
	}
	if !s.tryAcquire() {
		return ErrSessionBusy
	}
	go func(ctx context.Context) {
		defer s.release()
		defer func() {
			if r := recover(); r != nil {
				telemetry.Error("session.run_panic", map[string]any{
					"request_id": requestIDFromContext(ctx),
					"session_id": sessionID,
					"error":      fmt.Sprintf("%v", r),
				})
			}
		}()
		if _, err := s.drain(ctx, sessionID); err != nil {
			telemetry.Error("session.run_error", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}(backgroundWithRequestID(ctx))
	return nil
}

// Retry re-executes one failed task synchronously. Tasks that settled any
// other way, including partial results, are not retryable.
func (s *Service) Retry(ctx context.Context, sessionID, taskID string) (Task, error) {
	if s.Executor == nil {
		return Task{}, ErrNoExecutor
	}
	task, err := s.Repo.GetTask(ctx, sessionID, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.Status != TaskFailed {
		return Task{}, ErrTaskNotRetryable
	}
	if !s.tryAcquire() {
		return Task{}, ErrSessionBusy
	}
	defer s.release()

	task.Status = TaskRetrying
	task.Attempts++
	if err := s.Repo.UpdateTask(ctx, task); err != nil {
		return Task{}, fmt.Errorf("mark retrying: %w", err)
	}
	task = s.settleTask(ctx, task)
	if err := s.Repo.UpdateTask(context.Background(), task); err != nil {
		return Task{}, fmt.Errorf("persist retry outcome: %w", err)
	}
	return task, nil
}

// ExecuteSingle performs one decision immediately without creating a session.
// The bulk confidence gate does not apply: the caller is acting on a single
// record they have reviewed. Nothing is persisted.
func (s *Service) ExecuteSingle(ctx context.Context, reportID, userSysID string) (ExecutionOutcome, error) {
	run, err := s.Reports.GetByID(ctx, reportID)
	if err != nil {
		return ExecutionOutcome{}, fmt.Errorf("report run lookup: %w", err)
	}
	if run.Status != reports.StatusCompleted || run.Report == nil {
		return ExecutionOutcome{}, ErrRunNotCompleted
	}
	userSysID = strings.TrimSpace(userSysID)
	if snow.ValidateSysID(userSysID) != nil {
		return ExecutionOutcome{}, &SelectionError{Invalid: []string{userSysID}}
	}
	decision, ok := run.Report.FindDecision(userSysID)
	if !ok {
		return ExecutionOutcome{}, &SelectionError{Missing: []string{userSysID}}
	}

	if !s.tryAcquire() {
		return ExecutionOutcome{}, ErrSessionBusy
	}
	defer s.release()

	outcome := ExecutionOutcome{UserSysID: userSysID, Action: decision.Action}
	result, err := s.perform(ctx, userSysID, decision.Action)
	if err != nil {
		if errors.Is(err, ErrStaleDecision) || errors.Is(err, ErrNoExecutor) {
			return ExecutionOutcome{}, err
		}
		outcome.Status = snow.StatusError
		outcome.Message = err.Error()
	} else {
		outcome.Status = result.Status
		outcome.Message = result.Message
	}
	telemetry.Info("session.single_executed", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"report_id":  reportID,
		"user":       userSysID,
		"action":     string(decision.Action),
		"status":     outcome.Status,
	})
	return outcome, nil
}

func (s *Service) tryAcquire() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Service) release() { <-s.sem }

func (s *Service) drain(ctx context.Context, sessionID string) (Tally, error) {
	session, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return Tally{}, err
	}
	tasks, err := s.Repo.ListTasks(ctx, sessionID)
	if err != nil {
		return Tally{}, fmt.Errorf("list tasks: %w", err)
	}
	if session.Status == SessionDone {
		return TallyTasks(tasks), nil
	}

	if err := s.Repo.UpdateSession(ctx, sessionID, SessionRunning, session.Cursor); err != nil {
		return Tally{}, fmt.Errorf("mark running: %w", err)
	}
	telemetry.Info("session.run_started", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"session_id": sessionID,
		"cursor":     session.Cursor,
		"tasks":      len(tasks),
	})

	for i := session.Cursor; i < len(tasks); i++ {
		if ctx.Err() != nil {
			// Stopped between items: remaining tasks stay pending and the
			// session reopens at the current cursor for a later run.
			if uerr := s.Repo.UpdateSession(context.Background(), sessionID, SessionOpen, i); uerr != nil {
				telemetry.Warn("session.reopen_failed", map[string]any{
					"session_id": sessionID,
					"error":      uerr.Error(),
				})
			}
			return TallyTasks(tasks), ctx.Err()
		}

		task := tasks[i]
		if task.Status == TaskSucceeded || task.Status == TaskFailed {
			continue
		}

		task.Status = TaskInFlight
		task.Attempts++
		if err := s.Repo.UpdateTask(ctx, task); err != nil {
			return TallyTasks(tasks), fmt.Errorf("mark task %s in flight: %w", task.ID, err)
		}

		task = s.settleTask(ctx, task)
		tasks[i] = task
		// The instance write already happened: record the outcome on a fresh
		// context even if the run context was canceled mid task.
		if err := s.Repo.UpdateTask(context.Background(), task); err != nil {
			return TallyTasks(tasks), fmt.Errorf("persist task %s: %w", task.ID, err)
		}
		if err := s.Repo.UpdateSession(context.Background(), sessionID, SessionRunning, i+1); err != nil {
			return TallyTasks(tasks), fmt.Errorf("advance cursor: %w", err)
		}
	}

	if err := s.Repo.UpdateSession(context.Background(), sessionID, SessionDone, len(tasks)); err != nil {
		return TallyTasks(tasks), fmt.Errorf("mark done: %w", err)
	}
	tally := TallyTasks(tasks)
	telemetry.Info("session.run_finished", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"session_id": sessionID,
		"succeeded":  tally.Succeeded,
		"failed":     tally.Failed,
		"partial":    tally.Partial,
	})
	return tally, nil
}

// settleTask performs the task's write and records the outcome on the task.
// It never returns an error: execution failures settle the task as failed so
// the rest of the queue keeps moving. The caller persists the result.
func (s *Service) settleTask(ctx context.Context, task Task) Task {
	start := metrics.NowMillis()
	result, err := s.perform(ctx, task.UserSysID, task.Action)
	now := time.Now().UTC()
	task.ExecutedAt = &now
	switch {
	case err != nil:
		task.Status = TaskFailed
		task.Result = ""
		task.LastError = err.Error()
		metrics.IncTaskFailed()
	case result.Status == snow.StatusSuccess:
		task.Status = TaskSucceeded
		task.Result = snow.StatusSuccess
		task.LastError = ""
		metrics.IncTaskSucceeded()
	case result.Status == snow.StatusPartial:
		task.Status = TaskSucceeded
		task.Result = snow.StatusPartial
		task.LastError = result.Message
		metrics.IncTaskPartial()
	default:
		task.Status = TaskFailed
		task.Result = snow.StatusError
		task.LastError = result.Message
		metrics.IncTaskFailed()
	}
	metrics.ObserveTaskExecDurationMs(metrics.NowMillis() - start)
	telemetry.Info("session.task_settled", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"session_id": task.SessionID,
		"task_id":    task.ID,
		"user":       task.UserSysID,
		"action":     string(task.Action),
		"status":     task.Status,
		"result":     task.Result,
	})
	return task
}

// perform dispatches one decision to the instance. The directory is checked
// first: a user who vanished since the report was generated gets
// ErrStaleDecision and no write is attempted.
func (s *Service) perform(ctx context.Context, userSysID string, action engine.Action) (snow.WriteResult, error) {
	if s.Executor == nil {
		return snow.WriteResult{}, ErrNoExecutor
	}
	user, err := s.Directory.Lookup(ctx, userSysID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return snow.WriteResult{}, ErrStaleDecision
		}
		return snow.WriteResult{}, fmt.Errorf("directory lookup: %w", err)
	}

	callCtx := ctx
	if s.ExecTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.ExecTimeout)
		defer cancel()
	}

	switch action {
	case engine.ActionDeactivate:
		return s.Executor.SetUserInactive(callCtx, userSysID)
	case engine.ActionRemovePaidRoles:
		return s.removePaidRoles(callCtx, user)
	case engine.ActionDowngradeLicense, engine.ActionReviewAndDowngrade:
		return s.Executor.SetLicenseTier(callCtx, userSysID, engine.RequesterTier)
	default:
		return snow.WriteResult{}, fmt.Errorf("unsupported action %q", action)
	}
}

// removePaidRoles strips every paid role the user currently holds. Per-role
// failures do not abort the rest; the aggregate is partial when some roles
// came off and error when none did.
func (s *Service) removePaidRoles(ctx context.Context, user directory.User) (snow.WriteResult, error) {
	var paid []string
	for _, role := range user.Roles {
		if engine.IsPaidRole(role) {
			paid = append(paid, role)
		}
	}
	if len(paid) == 0 {
		return snow.WriteResult{Status: snow.StatusError, Message: "user holds no paid roles"}, nil
	}

	removed := 0
	var failures []string
	for _, role := range paid {
		res, err := s.Executor.RemoveRole(ctx, user.SysID, role)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", role, err))
			continue
		}
		if res.Status == snow.StatusSuccess {
			removed++
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", role, res.Message))
	}

	switch {
	case removed == len(paid):
		return snow.WriteResult{Status: snow.StatusSuccess, Message: fmt.Sprintf("removed %d paid roles", removed)}, nil
	case removed > 0:
		return snow.WriteResult{
			Status:  snow.StatusPartial,
			Message: fmt.Sprintf("removed %d of %d paid roles: %s", removed, len(paid), strings.Join(failures, "; ")),
		}, nil
	default:
		return snow.WriteResult{
			Status:  snow.StatusError,
			Message: "no roles removed: " + strings.Join(failures, "; "),
		}, nil
	}
}
