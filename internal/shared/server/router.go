package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"snaudit-backend/internal/costs"
	"snaudit-backend/internal/directory"
	"snaudit-backend/internal/reports"
	"snaudit-backend/internal/sessions"
	"snaudit-backend/internal/shared/config"
	"snaudit-backend/internal/shared/metrics"
	"snaudit-backend/internal/shared/server/middleware"
	"snaudit-backend/internal/shared/server/respond"
)

// RouterDeps carries the wired handlers the HTTP surface exposes.
type RouterDeps struct {
	Config           config.Config
	DirectoryHandler *directory.Handler
	CostsHandler     *costs.Handler
	ReportsHandler   *reports.Handler
	SessionsHandler  *sessions.Handler
	Health           HealthStatus
}

// HealthStatus reports which backing dependencies the process came up with.
type HealthStatus struct {
	Database string `json:"database"`
	Store    string `json:"store"`
	Queue    string `json:"queue"`
	Instance bool   `json:"instance"`
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"WRITE":   {Rate: 5, Burst: 10},
				"DEFAULT": {Rate: 25, Burst: 50},
			},
			GroupFor: func(c *gin.Context) string {
				switch c.Request.Method {
				case http.MethodPost, http.MethodPut, http.MethodDelete:
					return "WRITE"
				default:
					return ""
				}
			},
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{
			"ok":       true,
			"database": deps.Health.Database,
			"store":    deps.Health.Store,
			"queue":    deps.Health.Queue,
			"instance": deps.Health.Instance,
		})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	deps.DirectoryHandler.RegisterRoutes(api)
	deps.CostsHandler.RegisterRoutes(api)
	deps.ReportsHandler.RegisterRoutes(api)
	deps.SessionsHandler.RegisterRoutes(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
