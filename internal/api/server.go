package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
	"github.com/sleeplessdev/voicedetect-go/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Server owns the echo instance, the server-wide middleware chain and the
// request log. Route handlers live on the Controller it embeds.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	API      *Controller

	logger         *slog.Logger
	webLogger      *slog.Logger
	webLoggerClose func() error
	metrics        *observability.Metrics
	limiters       *cache.Cache
}

// New builds the HTTP server: echo instance, middleware, error handler and
// all routes. The metrics may be nil; recording is skipped then.
func New(settings *conf.Settings, engine *detector.Engine, metrics *observability.Metrics) (*Server, error) {
	if settings == nil {
		return nil, fmt.Errorf("api: settings must not be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("api: detection engine must not be nil")
	}

	logger := logging.ForService("web")
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	s := &Server{
		Echo:     e,
		Settings: settings,
		logger:   logger,
		metrics:  metrics,
		// Limiter entries expire after a client goes quiet so the map does
		// not grow with every IP ever seen.
		limiters: cache.New(10*time.Minute, 15*time.Minute),
	}

	s.initWebLogger()
	s.configureMiddleware()
	e.HTTPErrorHandler = s.handleHTTPError

	s.API = NewController(e, settings, engine, metrics)

	e.GET("/", s.API.RootBanner)
	// Legacy route kept for clients deployed against the original service.
	e.POST("/api/voice-detection", s.API.Detect, s.API.RequireAPIKey)

	return s, nil
}

// initWebLogger sets up the request log. With webserver.log disabled the
// requests go to the shared service logger instead of a dedicated file.
func (s *Server) initWebLogger() {
	logConf := &s.Settings.WebServer.Log
	if !logConf.Enabled {
		s.webLogger = s.logger
		return
	}

	path := logConf.Path
	if path == "" {
		path = "webserver.log"
	}

	webLogger, closeFunc, err := logging.NewFileLogger(path, "web", slog.LevelInfo)
	if err != nil {
		s.logger.Warn("failed to initialize request log, requests will not be logged to file",
			"path", path, "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		s.webLogger = slog.New(fbHandler)
		s.webLoggerClose = func() error { return nil }
		return
	}

	s.webLogger = webLogger
	s.webLoggerClose = closeFunc
	s.logger.Info("request logging initialized", "path", path)
}

// Start runs the server until the context is cancelled, then shuts it down
// gracefully. A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	port := s.Settings.WebServer.Port
	if port == "" {
		port = "8000"
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Echo.Start(":" + port)
	}()
	s.logger.Info("HTTP server starting", "port", port)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("HTTP server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

// Shutdown releases resources held outside the listener, currently the
// request log file.
func (s *Server) Shutdown() {
	if s.webLoggerClose != nil {
		if err := s.webLoggerClose(); err != nil {
			s.logger.Error("failed to close request log", "error", err)
		}
	}
}

// handleHTTPError renders every error echo surfaces (unknown routes, body
// limit trips, panics recovered by middleware) as the JSON error envelope.
func (s *Server) handleHTTPError(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal server error"

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		switch code {
		case http.StatusNotFound:
			message = "Not found"
		case http.StatusMethodNotAllowed:
			message = "Method not allowed"
		case http.StatusRequestEntityTooLarge:
			message = "File too large"
		default:
			if msg, ok := httpErr.Message.(string); ok && msg != "" {
				message = msg
			}
		}
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("unhandled request error",
			"method", ctx.Request().Method,
			"path", ctx.Request().URL.Path,
			"error", err)
	}

	if jsonErr := ctx.JSON(code, errorJSON(message)); jsonErr != nil {
		s.logger.Error("failed to write error response", "error", jsonErr)
	}
}
