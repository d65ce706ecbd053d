package sessions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"snaudit-backend/internal/reports"
	"snaudit-backend/internal/shared/server/middleware"
	"snaudit-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the orchestrator service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches execution routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/license/execute", h.executeSingle)
	rg.POST("/license/sessions", h.createSession)
	rg.GET("/license/sessions/:id", h.getSession)
	rg.POST("/license/sessions/:id/run", h.runSession)
	rg.POST("/license/sessions/:id/tasks/:taskID/retry", h.retryTask)
}

func (h *Handler) executeSingle(c *gin.Context) {
	var body struct {
		ReportID  string `json:"report_id"`
		UserSysID string `json:"user_sys_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ReportID == "" || body.UserSysID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "report_id and user_sys_id are required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	outcome, err := h.Svc.ExecuteSingle(ctx, body.ReportID, body.UserSysID)
	if err != nil {
		var selErr *SelectionError
		switch {
		case errors.Is(err, reports.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "report run not found", nil)
		case errors.Is(err, ErrRunNotCompleted):
			respond.Error(c, http.StatusConflict, "run_not_completed", "report run is not completed", nil)
		case errors.Is(err, ErrSessionBusy):
			respond.Error(c, http.StatusConflict, "busy", "another execution is in progress", nil)
		case errors.Is(err, ErrStaleDecision):
			respond.Error(c, http.StatusConflict, "stale_decision", "user is no longer in the directory snapshot", nil)
		case errors.Is(err, ErrNoExecutor):
			respond.Error(c, http.StatusServiceUnavailable, "no_instance", "no instance client configured", nil)
		case errors.As(err, &selErr):
			respond.Error(c, http.StatusBadRequest, "validation_error", selErr.Error(), selectionDetails(selErr))
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "execution failed", nil)
		}
		return
	}
	respond.OK(c, outcome)
}

func (h *Handler) createSession(c *gin.Context) {
	var body struct {
		ReportID   string   `json:"report_id"`
		UserSysIDs []string `json:"user_sys_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ReportID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "report_id is required", nil)
		return
	}
	if len(body.UserSysIDs) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "user_sys_ids is required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	session, tasks, err := h.Svc.CreateSession(ctx, body.ReportID, body.UserSysIDs)
	if err != nil {
		var selErr *SelectionError
		switch {
		case errors.Is(err, reports.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "report run not found", nil)
		case errors.Is(err, ErrRunNotCompleted):
			respond.Error(c, http.StatusConflict, "run_not_completed", "report run is not completed", nil)
		case errors.As(err, &selErr):
			respond.Error(c, http.StatusBadRequest, "validation_error", selErr.Error(), selectionDetails(selErr))
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create session", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"session": session,
		"tasks":   tasks,
	})
}

func (h *Handler) getSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}

	session, tasks, tally, err := h.Svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch session", nil)
		}
		return
	}
	if tasks == nil {
		tasks = []Task{}
	}
	respond.OK(c, gin.H{
		"session": session,
		"tasks":   tasks,
		"tally":   tally,
	})
}

func (h *Handler) runSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	if err := h.Svc.StartRun(ctx, sessionID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		case errors.Is(err, ErrSessionBusy):
			respond.Error(c, http.StatusConflict, "busy", "another execution is in progress", nil)
		case errors.Is(err, ErrNoExecutor):
			respond.Error(c, http.StatusServiceUnavailable, "no_instance", "no instance client configured", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start session run", nil)
		}
		return
	}
	respond.Accepted(c, gin.H{
		"sessionId": sessionID,
		"status":    SessionRunning,
	})
}

func (h *Handler) retryTask(c *gin.Context) {
	sessionID := c.Param("id")
	taskID := c.Param("taskID")
	if _, err := uuid.Parse(sessionID); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		return
	}
	if _, err := uuid.Parse(taskID); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	task, err := h.Svc.Retry(ctx, sessionID, taskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		case errors.Is(err, ErrTaskNotRetryable):
			respond.Error(c, http.StatusUnprocessableEntity, "not_retryable", "task is not in a retryable state", nil)
		case errors.Is(err, ErrSessionBusy):
			respond.Error(c, http.StatusConflict, "busy", "another execution is in progress", nil)
		case errors.Is(err, ErrNoExecutor):
			respond.Error(c, http.StatusServiceUnavailable, "no_instance", "no instance client configured", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry task", nil)
		}
		return
	}
	respond.OK(c, task)
}

func selectionDetails(selErr *SelectionError) gin.H {
	details := gin.H{}
	if len(selErr.Missing) > 0 {
		details["missing"] = selErr.Missing
	}
	if len(selErr.Rejected) > 0 {
		details["rejected"] = selErr.Rejected
	}
	if len(selErr.Invalid) > 0 {
		details["invalid"] = selErr.Invalid
	}
	return details
}
