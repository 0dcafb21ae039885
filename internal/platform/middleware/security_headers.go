package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers suited to a JSON API that also serves
// generated receipts and cards under /files.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			if strings.HasPrefix(c.Request().URL.Path, "/files/") {
				// receipts and cards are immutable once written
				h.Set("Cache-Control", "private, max-age=86400")
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; sandbox")
			} else {
				h.Set("Cache-Control", "no-store")
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			return next(c)
		}
	}
}
