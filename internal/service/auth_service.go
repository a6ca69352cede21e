package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type personReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
}

// AuthConfig defines how access tokens are verified and, for local tooling, issued.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService turns bearer tokens into request actors.
type AuthService struct {
	persons personReader
	logger  *zap.Logger
	config  AuthConfig
	now     func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(persons personReader, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 15 * time.Minute
	}
	return &AuthService{persons: persons, logger: logger, config: config, now: time.Now}
}

// IssueToken signs an access token for the person acting in role.
func (s *AuthService) IssueToken(personID string, role models.RoleKind) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.config.AccessTokenExpiry)
	claims := models.JWTClaims{
		PersonID:   personID,
		ActiveRole: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   personID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.PersonID == "" || !claims.ActiveRole.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token lacks person or role")
	}
	return claims, nil
}

// ResolveActor loads the person's current grants. The claimed role must be
// among them.
func (s *AuthService) ResolveActor(ctx context.Context, claims *models.JWTClaims) (models.Actor, error) {
	person, err := s.persons.FindByID(ctx, claims.PersonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "unknown person")
		}
		return models.Actor{}, internalErr(err, "failed to load person")
	}
	if person.Status != models.PersonActive {
		return models.Actor{}, appErrors.Clonef(appErrors.ErrForbidden, "person %s is %s", person.ID, person.Status)
	}

	now := s.now()
	actor := models.Actor{PersonID: person.ID, ActiveRole: claims.ActiveRole, GrantIDs: make(map[models.RoleKind]string)}
	for _, g := range person.Grants {
		if g.ActiveAt(now) {
			actor.GrantIDs[g.Kind] = g.ID
		}
	}
	if !actor.Has(claims.ActiveRole) {
		s.logger.Info("token role no longer granted", zap.String("person_id", person.ID), zap.String("role", string(claims.ActiveRole)))
		return models.Actor{}, appErrors.Clonef(appErrors.ErrForbidden, "role %s is not active for this person", claims.ActiveRole)
	}
	return actor, nil
}

// Authenticate validates the token and resolves its actor.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (models.Actor, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return models.Actor{}, err
	}
	return s.ResolveActor(ctx, claims)
}
