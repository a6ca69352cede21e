package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/service"
)

const (
	systemGroup    = "system"
	unmatchedRoute = "unmatched"
	anonymousRole  = "anonymous"
)

// Metrics records every request labelled with its API resource group and the
// caller's active role. Routes outside apiPrefix fall into the "system" group.
func Metrics(metricsSvc *service.MetricsService, apiPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		role := anonymousRole
		if actor, ok := ActorFromContext(c); ok {
			role = string(actor.ActiveRole)
		}
		metricsSvc.ObserveHTTPRequest(service.HTTPObservation{
			Method:   c.Request.Method,
			Group:    RouteGroup(path, apiPrefix),
			Path:     path,
			Role:     role,
			Status:   c.Writer.Status(),
			Duration: time.Since(start),
		})
	}
}

// RouteGroup returns the first path segment below apiPrefix, e.g.
// "enrollments" for /api/v1/enrollments/:id/payments.
func RouteGroup(path, apiPrefix string) string {
	prefix := strings.TrimSuffix(apiPrefix, "/")
	if prefix != "" {
		if !strings.HasPrefix(path, prefix+"/") {
			return systemGroup
		}
		path = path[len(prefix):]
	}
	rest := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || rest == unmatchedRoute {
		return systemGroup
	}
	return rest
}
