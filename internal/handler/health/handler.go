package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Info reports an informational value that never fails readiness.
type Info func() interface{}

type Handler struct {
	checks  map[string]Check
	info    map[string]Info
	timeout time.Duration
}

// NewHandler takes the named dependencies readiness depends on (store, database).
func NewHandler(checks map[string]Check) *Handler {
	return &Handler{
		checks:  checks,
		info:    make(map[string]Info),
		timeout: 2 * time.Second,
	}
}

// WithInfo adds a value reported under "info" on the readiness response.
func (h *Handler) WithInfo(name string, fn Info) *Handler {
	h.info[name] = fn
	return h
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = "DOWN"
			ready = false
			continue
		}
		results[name] = "UP"
	}

	body := gin.H{"status": "UP", "checks": results}
	if len(h.info) > 0 {
		info := make(map[string]interface{}, len(h.info))
		for name, fn := range h.info {
			info[name] = fn()
		}
		body["info"] = info
	}

	if !ready {
		body["status"] = "DOWN"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
