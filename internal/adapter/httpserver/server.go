package httpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/fontdiff/internal/adapter/metrics"
	"github.com/pscheid92/fontdiff/internal/app"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/config"
)

//go:embed templates/*.html
var templateFiles embed.FS

type appService interface {
	Submit(ctx context.Context, req domain.Request) (*app.SubmitResult, error)
	ReadFontSet(ctx context.Context, sessionID uuid.UUID) (*domain.FontSet, error)
	ReadDiffs(ctx context.Context, sessionID uuid.UUID, view string) ([]domain.DiffRecord, error)
	ReadFontFile(ctx context.Context, contentRef string) ([]byte, error)
	Info(ctx context.Context, sessionID uuid.UUID) (*app.Info, error)
	Views() []string
	HasView(view string) bool
	DiffLimit() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app         appService
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics

	templates    *template.Template
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires routes onto a fresh echo instance. registry and
// httpMetrics may be nil, in which case /metrics is not served.
func NewServer(cfg *config.Config, app appService, registry *prometheus.Registry, httpMetrics *metrics.HTTPMetrics, healthChecks []HealthCheck) (*Server, error) {
	templates, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		registry:     registry,
		httpMetrics:  httpMetrics,
		templates:    templates,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be driven directly by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}
