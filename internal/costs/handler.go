package costs

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"snaudit-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches cost-table routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/license/costs", h.getCosts)
	rg.PUT("/license/costs/:license", h.putCost)
}

func (h *Handler) getCosts(c *gin.Context) {
	effective, err := h.Svc.Effective(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load cost table", nil)
		return
	}
	overrides, err := h.Svc.Overrides(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load cost table", nil)
		return
	}

	respond.OK(c, gin.H{
		"costs":     effective,
		"overrides": overrides,
	})
}

func (h *Handler) putCost(c *gin.Context) {
	license := strings.TrimSpace(c.Param("license"))
	if license == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "license type is required", nil)
		return
	}

	var body struct {
		MonthlyCost *float64 `json:"monthly_cost"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.MonthlyCost == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "monthly_cost is required", nil)
		return
	}
	if *body.MonthlyCost < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "monthly_cost must be >= 0", nil)
		return
	}

	if err := h.Svc.SetOverride(c.Request.Context(), license, *body.MonthlyCost); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store cost override", nil)
		return
	}

	respond.OK(c, gin.H{
		"license":      license,
		"monthly_cost": *body.MonthlyCost,
	})
}
