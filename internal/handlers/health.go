package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports the state of a backing service.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type HealthHandler struct {
	db      HealthChecker
	started time.Time
}

func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// Health answers 200 while the database is reachable and 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	db := h.db.Health(c.Request.Context())

	status, code := "ok", http.StatusOK
	if db["status"] != "up" {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"database":  db,
	})
}
