package middleware

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/nudge/common/logger"
)

// Logger writes one record per request. Routes in quiet log at debug, which
// keeps probe traffic out of info-level output.
func Logger(quiet ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			Component: "nudge.http",
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", logger.Truncate(c.Errors.String(), 500)))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case slices.Contains(quiet, route):
			level = slog.LevelDebug
		}
		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}
