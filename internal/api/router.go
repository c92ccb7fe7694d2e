package api

import (
	"github.com/gin-gonic/gin"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/api/handler"
	"github.com/repodoc/docgen_server/internal/api/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Job       *handler.JobHandler
	Feedback  *handler.FeedbackHandler
	Health    *handler.HealthHandler
	WebSocket *handler.WebSocketHandler
}

// NewRouter wires up the HTTP surface.
func NewRouter(cfg *config.Config, h *Handlers) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS(&cfg.CORS))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/analyze", h.Job.Analyze)
		v1.GET("/jobs", h.Job.ListJobs)
		v1.GET("/jobs/:id", h.Job.GetJob)
		v1.GET("/jobs/:id/download", h.Job.Download)
		v1.POST("/jobs/:id/feedback", h.Feedback.Submit)
		v1.GET("/jobs/:id/feedback", h.Feedback.List)
		v1.GET("/health", h.Health.Check)
	}

	if h.WebSocket != nil {
		r.GET("/ws/jobs/:id", h.WebSocket.Subscribe)
	}

	return r
}
