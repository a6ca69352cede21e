package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

// RequireRoles rejects callers whose active role is not one of roles.
// Finer checks (own enrollment, assigned professor) stay in the services.
func RequireRoles(roles ...models.RoleKind) gin.HandlerFunc {
	allowed := make(map[models.RoleKind]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.ActiveRole]; ok && actor.Has(actor.ActiveRole) {
			c.Next()
			return
		}
		response.Error(c, appErrors.Clonef(appErrors.ErrForbidden, "role %s may not access this resource", actor.ActiveRole))
		c.Abort()
	}
}
