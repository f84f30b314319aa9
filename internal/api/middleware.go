package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sleeplessdev/voicedetect-go/internal/errors"
	"github.com/sleeplessdev/voicedetect-go/internal/security"
)

// configureMiddleware installs the server-wide chain. Order matters: the
// request ID must exist before logging, and rate limiting runs after
// logging so rejected requests still show up in the request log.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.corsOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, security.KeyHeader(s.Settings)},
	}))
	// The handlers enforce the exact upload cap; the body limit sits one
	// megabyte above it to leave room for multipart framing.
	s.Echo.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.maxUploadMB()+1)))
	s.Echo.Use(s.LoggingMiddleware())
	s.Echo.Use(s.RateLimitMiddleware())
}

func (s *Server) corsOrigins() []string {
	if len(s.Settings.WebServer.AllowedOrigins) > 0 {
		return s.Settings.WebServer.AllowedOrigins
	}
	return []string{"*"}
}

func (s *Server) maxUploadMB() int64 {
	if s.Settings.WebServer.MaxUploadMB > 0 {
		return s.Settings.WebServer.MaxUploadMB
	}
	return 25
}

// LoggingMiddleware writes one structured record per request and feeds the
// HTTP metrics. The status for failed requests comes from the error, since
// the error handler has not rendered the response yet at this point.
func (s *Server) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			elapsed := time.Since(start)

			status := res.Status
			if err != nil {
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			if s.metrics != nil && s.metrics.HTTP != nil {
				path := ctx.Path()
				if path == "" {
					path = req.URL.Path
				}
				s.metrics.HTTP.RecordHTTPRequest(req.Method, path, status, elapsed.Seconds())
				s.metrics.HTTP.RecordHTTPResponseSize(req.Method, path, res.Size)
			}

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", status),
				slog.String("ip", ctx.RealIP()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", elapsed.Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			s.webLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// rateLimitBody extends the error envelope with the limit facts so clients
// can back off intelligently.
type rateLimitBody struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"windowSeconds"`
}

// RateLimitMiddleware enforces a per-client token bucket: the sustained
// rate comes from security.ratelimit.rpm with the configured burst on top.
// Limiters live in a TTL cache keyed by client IP.
func (s *Server) RateLimitMiddleware() echo.MiddlewareFunc {
	rl := &s.Settings.Security.RateLimit

	rpm := rl.RPM
	if rpm <= 0 {
		rpm = 60
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = rpm
	}
	limit := rate.Limit(float64(rpm) / 60)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.Enabled {
				return next(ctx)
			}

			ip := ctx.RealIP()
			if ip == "" {
				ip = "unknown"
			}

			if !s.limiterFor(ip, limit, burst).Allow() {
				if s.metrics != nil && s.metrics.HTTP != nil {
					s.metrics.HTTP.RecordRateLimited(ctx.Path())
				}
				return ctx.JSON(http.StatusTooManyRequests, rateLimitBody{
					Status:        "error",
					Message:       "Rate limit exceeded",
					Limit:         rpm,
					WindowSeconds: 60,
				})
			}

			return next(ctx)
		}
	}
}

// limiterFor returns the client's limiter, creating it on first sight.
// When two requests race on the first hit, both keep working limiters and
// the cached one wins for all later requests.
func (s *Server) limiterFor(ip string, limit rate.Limit, burst int) *rate.Limiter {
	if v, ok := s.limiters.Get(ip); ok {
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(limit, burst)
	if err := s.limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		if v, ok := s.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}
