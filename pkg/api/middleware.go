package api

import (
	"errors"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/metrics"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// metricsMiddleware records every request's status class and latency on m.
// Installed ahead of routing so it also sees 404s. It runs before echo's
// HTTPErrorHandler writes the response, so a returned error's status is
// read off the error value directly rather than off the (not yet written)
// response.
func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status

			var ce *codedError
			var he *echo.HTTPError
			switch {
			case errors.As(err, &ce):
				status = ce.status
			case errors.As(err, &he):
				status = he.Code
			case err != nil:
				status = 500
			case status == 0:
				status = 200
			}
			m.RecordRequest(status, time.Since(start))
			return err
		}
	}
}
