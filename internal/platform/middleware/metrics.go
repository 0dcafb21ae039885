package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
)

// Metrics records request count, latency and in-flight gauge per route
// pattern, so ids never explode label cardinality.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			metrics.HTTPRequestInFlight.Inc()
			defer metrics.HTTPRequestInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = 500
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			metrics.HTTPRequestTotals.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
