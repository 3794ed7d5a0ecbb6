package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	applogger "QuantShield/pkg/logger"
)

// Recover turns handler panics into 500 responses instead of crashing
// the process.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				if l != nil {
					l.Error("handler panic",
						applogger.String("path", c.Request().URL.Path),
						applogger.String("stack", string(debug.Stack())),
						applogger.Error(err),
					)
				}
				_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": "Internal Server Error",
				})
			}()
			return next(c)
		}
	}
}
