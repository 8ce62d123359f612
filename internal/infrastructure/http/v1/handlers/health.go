package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthConfig configures the health handler.
type HealthConfig struct {
	Version string
	Storage string

	// DB is nil for in-memory storage.
	DB Pinger

	// Stats, when set, adds storage statistics to /health/info.
	Stats func() map[string]any

	ProducedSource string
	CountingStage  string
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	cfg HealthConfig
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.cfg.DB != nil {
		if err := h.cfg.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"checks": map[string]string{
					"database": "unhealthy: " + err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     "prodledger",
		"version": h.cfg.Version,
		"storage": h.cfg.Storage,
		"policy": gin.H{
			"producedSource": h.cfg.ProducedSource,
			"countingStage":  h.cfg.CountingStage,
		},
	}
	if h.cfg.Stats != nil {
		body["database"] = h.cfg.Stats()
	}
	c.JSON(http.StatusOK, body)
}
