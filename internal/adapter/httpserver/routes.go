package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/fontdiff/internal/adapter/metrics"
	apperrors "github.com/pscheid92/fontdiff/internal/platform/errors"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(apperrors.Middleware(s.errorRecorder()))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"font-src 'self' data:; " +
			"frame-ancestors 'none'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	submission := s.submissionMiddleware()

	s.echo.GET("/", s.handleLanding)

	s.registerHealthRoutes()
	s.registerUploadRoutes(submission)
	s.registerCompareRoutes()
	s.registerAPIRoutes(submission)
	s.registerFontRoutes()

	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
}

// errorRecorder avoids handing a typed nil to the error middleware.
func (s *Server) errorRecorder() apperrors.Recorder {
	if s.httpMetrics == nil {
		return nil
	}
	return s.httpMetrics
}

// submissionMiddleware guards the endpoints that accept font uploads. Both
// share one limiter store.
func (s *Server) submissionMiddleware() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		newRateLimiter(s.config.UploadRateLimit, s.config.UploadBurst),
		middleware.BodyLimit(s.config.MaxUploadSize),
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
