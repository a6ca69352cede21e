package models

import "github.com/golang-jwt/jwt/v5"

// Actor is the caller identity resolved for one request.
type Actor struct {
	PersonID   string
	ActiveRole RoleKind
	// GrantIDs maps each active role kind to the grant id held by the person.
	GrantIDs map[RoleKind]string
}

// Has reports whether the actor currently holds a grant of kind.
func (a Actor) Has(kind RoleKind) bool {
	_, ok := a.GrantIDs[kind]
	return ok
}

// GrantID returns the grant id for kind or "".
func (a Actor) GrantID(kind RoleKind) string {
	return a.GrantIDs[kind]
}

// JWTClaims is the payload of access tokens issued by the identity provider.
type JWTClaims struct {
	PersonID   string   `json:"person_id"`
	ActiveRole RoleKind `json:"role"`
	jwt.RegisteredClaims
}
