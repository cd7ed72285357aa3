package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/whalewatch/whalewatch/internal/infrastructure/cache"
	"github.com/whalewatch/whalewatch/internal/infrastructure/database"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	db        *sqlx.DB
	cache     cache.RedisClient
	logger    *logger.Logger
	version   string
	startTime time.Time
}

func NewHealthHandler(db *sqlx.DB, cache cache.RedisClient, logger *logger.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health/liveness. It answers 200 as long as the
// process serves requests; dependency state is readiness's concern.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// Readiness handles GET /health/readiness and checks the database and cache.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.cache.Ping(c.Request.Context()); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	statusCode := http.StatusOK
	status := "ready"
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		status = "unavailable"
		h.logger.Warn("readiness check failed", "checks", checks)
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"version":   h.version,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
