package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/pkg/response"
)

type HealthHandler struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client
	queue *queue.Queue
}

func NewHealthHandler(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, q *queue.Queue) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, redis: redisClient, queue: q}
}

// Check handles GET /api/v1/health. Unreachable hard dependencies turn
// the status code to 503 so load balancers can react; llm and github
// report configuration state only, since the pipeline degrades without
// them.
func (h *HealthHandler) Check(c *gin.Context) {
	status := gin.H{
		"database": "ok",
		"redis":    "ok",
		"llm":      configured(h.cfg.LLM.APIKey),
		"github":   configured(h.cfg.GitHub.Token),
	}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		status["database"] = "unreachable"
		healthy = false
	}

	if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
		status["redis"] = "unreachable"
		healthy = false
	} else if depth, err := h.queue.Length(c.Request.Context()); err == nil {
		status["queue_depth"] = depth
	}

	if !healthy {
		response.UnavailableError(c, "one or more dependencies are unreachable")
		return
	}
	response.Success(c, status)
}

func configured(key string) string {
	if key == "" {
		return "not_configured"
	}
	return "configured"
}
