package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/service"
)

// Pinger is a backing dependency that can report whether it is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

const (
	checkOK       = "ok"
	checkDown     = "down"
	checkDisabled = "disabled"
)

// HealthReport is the body served by the health endpoints.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SystemHandler serves health and metrics endpoints. The ledger store is
// required; the report cache is optional and only degrades the status.
type SystemHandler struct {
	metrics *service.MetricsService
	store   Pinger
	cache   Pinger
	timeout time.Duration
}

// NewSystemHandler builds the handler. A nil cache means the report cache is disabled.
func NewSystemHandler(metrics *service.MetricsService, store, cache Pinger) *SystemHandler {
	return &SystemHandler{metrics: metrics, store: store, cache: cache, timeout: 2 * time.Second}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *SystemHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health reports the ledger store and report cache. It answers 503 only when
// the store is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report := HealthReport{Status: "ok", Checks: map[string]string{
		"store": ping(ctx, h.store),
		"cache": checkDisabled,
	}}
	if h.cache != nil {
		report.Checks["cache"] = ping(ctx, h.cache)
	}

	status := http.StatusOK
	switch {
	case report.Checks["store"] != checkOK:
		report.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case report.Checks["cache"] == checkDown:
		report.Status = "degraded"
	}
	c.JSON(status, report)
}

func ping(ctx context.Context, p Pinger) string {
	if p == nil {
		return checkDown
	}
	if p.PingContext(ctx) != nil {
		return checkDown
	}
	return checkOK
}
