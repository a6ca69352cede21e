package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

type tokenIssuer interface {
	IssueToken(personID string, role models.RoleKind) (string, time.Time, error)
}

// IssueTokenRequest asks for a token acting as person under role.
type IssueTokenRequest struct {
	PersonID string          `json:"person_id" binding:"required"`
	Role     models.RoleKind `json:"role" binding:"required"`
}

// AuthHandler exposes the caller identity and, outside production, a token
// endpoint standing in for the identity provider.
type AuthHandler struct {
	issuer tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(issuer tokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// Me godoc
// @Summary Resolved identity of the caller
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{
		"person_id":   actor.PersonID,
		"active_role": actor.ActiveRole,
		"grants":      actor.GrantIDs,
	})
}

// IssueToken godoc
// @Summary Issue a development access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body IssueTokenRequest true "Token payload"
// @Success 200 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Role.Valid() {
		response.Error(c, appErrors.Clonef(appErrors.ErrValidation, "unknown role %s", req.Role))
		return
	}
	token, expiresAt, err := h.issuer.IssueToken(req.PersonID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"access_token": token, "token_type": "Bearer", "expires_at": expiresAt})
}
