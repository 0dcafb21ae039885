package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// Roles known to the API. A health owner passes every role gate.
const (
	RoleHealthOwner = "health_owner"
	RoleWorker      = "worker"
	RolePharmacy    = "pharmacy"
	RoleHospital    = "hospital"
)

// Identity is the authenticated caller: who they are, which organization they
// act for, and their role within it.
type Identity struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   string
}

// IsStaff reports whether the caller administers the organization's workflow.
func (i Identity) IsStaff() bool {
	return i.Role == RoleHealthOwner || i.Role == RoleWorker
}

type Claims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org"`
	Role  string `json:"role"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

func validRole(role string) bool {
	switch role {
	case RoleHealthOwner, RoleWorker, RolePharmacy, RoleHospital:
		return true
	}
	return false
}

// ParseToken verifies an HS256 token and returns the identity it carries.
func ParseToken(cfg JWTConfig, tokenStr string) (Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid subject: %w", err)
	}
	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid organization: %w", err)
	}
	if !validRole(claims.Role) {
		return Identity{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return Identity{UserID: userID, OrgID: orgID, Role: claims.Role}, nil
}

// SignToken issues an HS256 token for id. Used by tests and local tooling;
// the API itself never issues tokens.
func SignToken(cfg JWTConfig, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OrgID: id.OrgID.String(),
		Role:  id.Role,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return parts[1], nil
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}
			id, err := ParseToken(cfg, tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

// DevAuthMiddleware accepts unauthenticated requests as dev. A bearer token,
// when present, is still verified.
func DevAuthMiddleware(dev Identity, cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		verified := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" && len(cfg.SigningKey) > 0 {
				return verified(c)
			}
			setIdentity(c, dev)
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, id Identity) {
	c.Set("org_id", id.OrgID.String())
	c.Set("user_id", id.UserID.String())
	c.Set("role", id.Role)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
