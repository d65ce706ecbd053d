package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"snaudit-backend/internal/shared/server/middleware"
	"snaudit-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the reports service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/license/reports", h.startReport)
	rg.GET("/license/reports", h.listReports)
	rg.GET("/license/reports/latest", h.latestReport)
	rg.GET("/license/reports/:id", h.getReport)
}

func (h *Handler) startReport(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	run, err := h.Svc.Start(ctx)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start report run", nil)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"runId":  run.ID,
		"status": run.Status,
	})
}

func (h *Handler) getReport(c *gin.Context) {
	runID := c.Param("id")
	if _, err := uuid.Parse(runID); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "report run not found", nil)
		return
	}

	run, err := h.Svc.GetByID(c.Request.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "report run not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch report run", nil)
		}
		return
	}
	respond.OK(c, run)
}

func (h *Handler) latestReport(c *gin.Context) {
	run, err := h.Svc.LatestCompleted(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "no completed report run yet", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch latest report", nil)
		}
		return
	}
	respond.OK(c, run)
}

func (h *Handler) listReports(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	runs, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list report runs", nil)
		return
	}
	if runs == nil {
		runs = []ReportRun{}
	}
	respond.OK(c, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}
