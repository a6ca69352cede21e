package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/middleware"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

const dateLayout = "2006-01-02"

// actorFromContext writes a 401 and returns ok=false when no actor was resolved.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "%s must be formatted as YYYY-MM-DD", key)
	}
	return &t, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "%s must be a number", key)
	}
	return n, nil
}
