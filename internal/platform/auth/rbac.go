package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff is the role set that administers requests, members and invoices.
var Staff = []string{RoleHealthOwner, RoleWorker}

// RequireRole returns middleware that checks the caller has one of roles.
// Health owners always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			if HasRole(id, roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func HasRole(id Identity, roles ...string) bool {
	if id.Role == RoleHealthOwner {
		return true
	}
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// Caller returns the identity set by the auth middleware.
func Caller(c echo.Context) (Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	return id, nil
}
