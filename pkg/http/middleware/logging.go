package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// RequestLogging logs HTTP requests at debug level; 5xx responses are logged as errors.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if c.Response().Status >= 500 {
				l.Error("http request", append(fields, applogger.Error(err))...)
			} else {
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
