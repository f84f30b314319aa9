package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sleeplessdev/voicedetect-go/internal/security"
)

// RequireAPIKey guards a route with the configured API key. The check is
// skipped entirely when no keys are configured, and clients inside an
// allowed bypass subnet pass without presenting one. A missing key answers
// 401, a wrong key 403, both with the error envelope.
func (c *Controller) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !security.KeyRequired(c.Settings) {
			return next(ctx)
		}

		if security.IsRequestFromAllowedSubnet(c.Settings, ctx.RealIP()) {
			return next(ctx)
		}

		header := security.KeyHeader(c.Settings)
		presented := ctx.Request().Header.Get(header)
		if presented == "" {
			c.recordAuthFailure("missing_key")
			message := fmt.Sprintf("Missing API key. Include '%s' in request headers.", header)
			return c.HandleError(ctx, nil, message, http.StatusUnauthorized)
		}

		if !security.ValidKey(c.Settings, presented) {
			c.recordAuthFailure("invalid_key")
			return c.HandleError(ctx, nil, "Invalid API key", http.StatusForbidden)
		}

		return next(ctx)
	}
}

func (c *Controller) recordAuthFailure(reason string) {
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordAuthFailure(reason)
	}
}
