package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "QuantShield/pkg/logger"
)

// RequestLogging writes one access-log line per request.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if l == nil {
				return err
			}

			req := c.Request()
			l.Info("request",
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", req.Header.Get(HeaderRequestID)),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("took", time.Since(start)),
			)
			return err
		}
	}
}
