package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindwell/crisis/internal/platform/auth"
)

// Logger emits one structured line per request. Health probes are skipped so
// orchestrator polling stays out of the request log, and the acting identity
// is attached where present, since assessment and escalation calls are
// clinical actions that must be attributable.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if strings.HasPrefix(req.URL.Path, "/health") {
				return next(c)
			}

			start := time.Now()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			if actor := auth.UserIDFromContext(c); actor != "" {
				evt = evt.Str("actor", actor)
			}
			if roles := auth.RolesFromContext(c); len(roles) > 0 {
				evt = evt.Strs("roles", roles)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
