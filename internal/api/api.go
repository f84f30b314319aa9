// Package api implements the public HTTP interface of the detection
// service: classification endpoints, service metadata and the gated debug
// routes, all grouped under /api/v1.
package api

import (
	"crypto/rand"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
	"github.com/sleeplessdev/voicedetect-go/internal/observability"
)

// Controller registers the API routes and holds what the handlers need:
// the settings, the detection engine and the shared metrics.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Engine   *detector.Engine

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewController creates the API controller and registers all routes on the
// /api/v1 group. Route-level middleware (API key guard, debug gate) is
// attached here; server-wide middleware belongs to the Server.
func NewController(e *echo.Echo, settings *conf.Settings, engine *detector.Engine, metrics *observability.Metrics) *Controller {
	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		Echo:     e,
		Group:    e.Group("/api/v1"),
		Settings: settings,
		Engine:   engine,
		logger:   logger,
		metrics:  metrics,
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints. Health and languages are public;
// classification and debug routes sit behind the API key guard.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.Health)
	c.Group.GET("/languages", c.Languages)

	c.Group.POST("/classify", c.Classify, c.RequireAPIKey)
	c.Group.POST("/detect", c.Detect, c.RequireAPIKey)

	// Route from the first deployment, kept for older clients.
	c.Echo.POST("/api/voice-detection", c.Detect, c.RequireAPIKey)

	c.initDebugRoutes()
}

// errorBody is the JSON envelope every error response uses.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorJSON(message string) errorBody {
	return errorBody{Status: "error", Message: message}
}

// HandleError logs the failure with a correlation ID and answers with the
// error envelope. The correlation ID appears only in the logs; clients get
// the message alone.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	correlationID := generateCorrelationID()

	attrs := []any{
		"correlation_id", correlationID,
		"message", message,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}

	if code >= http.StatusInternalServerError {
		c.logger.Error("request failed", attrs...)
	} else {
		c.logger.Debug("request rejected", attrs...)
	}

	c.recordRequestError(ctx, err, code)

	return ctx.JSON(code, errorJSON(message))
}

func (c *Controller) recordRequestError(ctx echo.Context, err error, code int) {
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, ctx.Path(), errorTypeFor(err, code))
	}
}

// errorTypeFor picks the low-cardinality error label: the category when the
// error carries one, otherwise a coarse class derived from the status code.
func errorTypeFor(err error, code int) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "auth"
	case code == http.StatusTooManyRequests:
		return "rate_limit"
	case code >= http.StatusInternalServerError:
		return "system"
	default:
		return "client"
	}
}

// generateCorrelationID creates a short random identifier for tracking one
// error through the logs.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// round2 rounds a confidence to two decimals for wire payloads.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Use monotonic clock for uptime reporting.
var startTime = time.Now()
