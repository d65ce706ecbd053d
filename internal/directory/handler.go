package directory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"snaudit-backend/internal/shared/server/respond"
	"snaudit-backend/internal/snow"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches directory routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/directory/sync", h.sync)
	rg.GET("/directory/users", h.listUsers)
}

func (h *Handler) sync(c *gin.Context) {
	result, err := h.Svc.Sync(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrNoSource):
			respond.Error(c, http.StatusServiceUnavailable, "no_instance", "no instance client configured", nil)
		case errors.Is(err, snow.ErrCredentials):
			respond.Error(c, http.StatusBadGateway, "upstream_auth", "ServiceNow rejected the configured credentials", nil)
		case errors.Is(err, snow.ErrTableMissing):
			respond.Error(c, http.StatusBadGateway, "upstream_table_missing", "ServiceNow user table is not reachable", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "sync_failed", "failed to sync users from ServiceNow", nil)
		}
		return
	}
	respond.OK(c, result)
}

func (h *Handler) listUsers(c *gin.Context) {
	limit := 50
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 500 {
		limit = 500
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list directory users", nil)
		return
	}
	if users == nil {
		users = []User{}
	}

	respond.OK(c, gin.H{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
