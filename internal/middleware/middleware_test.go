package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/logger"
)

type stubAuth map[string]models.Actor

func (s stubAuth) Authenticate(_ context.Context, token string) (models.Actor, error) {
	actor, ok := s[token]
	if !ok {
		return models.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return actor, nil
}

var testActors = stubAuth{
	"office-token": {PersonID: "person-office", ActiveRole: models.RoleOffice, GrantIDs: map[models.RoleKind]string{models.RoleOffice: "g-office"}},
	"gate-token":   {PersonID: "person-gate", ActiveRole: models.RoleGate, GrantIDs: map[models.RoleKind]string{models.RoleGate: "g-gate"}},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{JWT(testActors)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.String(http.StatusOK, actor.PersonID+"|"+c.GetString(logger.ActorKey))
	})
	router.POST("/courses/:id", chain...)
	return router
}

func do(router http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/courses/c-1", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTResolvesActor(t *testing.T) {
	router := newRouter()

	rec := do(router, "Bearer office-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "person-office|person-office", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, "Token office-token").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, "Bearer nope").Code)
}

func TestRequireRoles(t *testing.T) {
	router := newRouter(RequireRoles(models.RoleAdministrator, models.RoleOffice))

	assert.Equal(t, http.StatusOK, do(router, "Bearer office-token").Code)

	rec := do(router, "Bearer gate-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestRequireRolesWithoutActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleOffice), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditLogsSuccessfulMutations(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := newRouter(Audit(zap.New(core), "course.update"))

	require.Equal(t, http.StatusOK, do(router, "Bearer office-token").Code)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "course.update", fields["action"])
	assert.Equal(t, "person-office", fields["actor"])
	assert.Equal(t, "c-1", fields["param_id"])

	do(router, "Bearer nope")
	assert.Equal(t, 1, logs.Len())
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsLabelsGroupAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/api/v1/"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/enrollments/:id/payments", JWT(testActors), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
	} {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments/e-1/payments", nil)
	req.Header.Set("Authorization", "Bearer office-token")
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{group="enrollments",method="POST",path="/api/v1/enrollments/:id/payments",role="OFFICE",status="201"} 1`)
	assert.Contains(t, body, `http_requests_total{group="system",method="GET",path="/health",role="anonymous",status="200"} 1`)
	assert.Contains(t, body, `http_requests_total{group="system",method="GET",path="unmatched",role="anonymous",status="404"} 1`)
}

func TestRouteGroup(t *testing.T) {
	assert.Equal(t, "enrollments", RouteGroup("/api/v1/enrollments/:id/payments", "/api/v1"))
	assert.Equal(t, "reports", RouteGroup("/api/v1/reports/monthly", "/api/v1/"))
	assert.Equal(t, "system", RouteGroup("/health", "/api/v1"))
	assert.Equal(t, "system", RouteGroup("/api/v1", "/api/v1"))
	assert.Equal(t, "payments", RouteGroup("/payments/:id", ""))
	assert.Equal(t, "system", RouteGroup("unmatched", ""))
}
