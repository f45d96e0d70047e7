package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontdiff/internal/acquire"
	"github.com/pscheid92/fontdiff/internal/adapter/catalog"
	"github.com/pscheid92/fontdiff/internal/adapter/github"
	"github.com/pscheid92/fontdiff/internal/adapter/httpserver"
	"github.com/pscheid92/fontdiff/internal/adapter/memory"
	"github.com/pscheid92/fontdiff/internal/adapter/metrics"
	"github.com/pscheid92/fontdiff/internal/adapter/postgres"
	"github.com/pscheid92/fontdiff/internal/adapter/redis"
	"github.com/pscheid92/fontdiff/internal/app"
	"github.com/pscheid92/fontdiff/internal/diff"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/config"
	"github.com/pscheid92/fontdiff/internal/platform/logging"
	"github.com/pscheid92/fontdiff/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const cacheEvictionInterval = time.Minute

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore returns the durable store when DATABASE_URL is set and the
// in-memory store otherwise. The pool is nil in the latter case.
func setupStore(cfg *config.Config, dbm *metrics.DBMetrics) (domain.SessionRepository, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, sessions are kept in memory and lost on restart")
		return memory.NewSessionRepository(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(dbm))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("Failed to migrate session schema", "error", err)
		os.Exit(1)
	}

	return postgres.NewSessionRepo(pool), pool
}

// setupRedis connects the shared catalog cache layer. Without REDIS_URL the
// cache is process-local only.
func setupRedis(cfg *config.Config, bm *metrics.BreakerMetrics) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, catalog cache is process-local")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewCircuitBreakerHook(bm))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// validateViews rejects configured views the engine cannot compute.
func validateViews(views []string, engine domain.DiffEngine) error {
	supported := engine.Views()
	for _, v := range views {
		if !domain.IsReservedView(v) && !slices.Contains(supported, v) {
			return fmt.Errorf("view %q is not supported (supported: %v)", v, supported)
		}
	}
	return nil
}

func healthChecks(pool *pgxpool.Pool, rdb *goredis.Client) []httpserver.HealthCheck {
	var checks []httpserver.HealthCheck
	if pool != nil {
		checks = append(checks, httpserver.HealthCheck{Name: "postgres", Check: pool.Ping})
	}
	if rdb != nil {
		checks = append(checks, httpserver.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return checks
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, draining in-flight submissions...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	breakerMetrics := metrics.NewBreakerMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)
	dbMetrics := metrics.NewDBMetrics(registry)

	store, pool := setupStore(cfg, dbMetrics)
	if pool != nil {
		defer pool.Close()
	}

	redisClient := setupRedis(cfg, breakerMetrics)
	// Keep the interface nil when Redis is disabled.
	var sharedCache goredis.Cmdable
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		sharedCache = redisClient
	}

	catalogClient, err := catalog.NewClient(catalog.Config{
		BaseURL:   cfg.CatalogURL,
		Timeout:   cfg.CatalogTimeout,
		RateLimit: cfg.CatalogRateLimit,
		Breaker:   breakerMetrics,
	})
	if err != nil {
		slog.Error("Failed to create catalog client", "error", err)
		os.Exit(1)
	}

	catalogCache := redis.NewCatalogCache(catalogClient, sharedCache, clock, cfg.CatalogCacheTTL, cacheMetrics)
	stopEviction := catalogCache.StartEvictionTimer(cacheEvictionInterval)
	defer stopEviction()

	githubSource, err := github.NewSource(github.Config{
		APIURL:  cfg.GitHubAPIURL,
		Token:   cfg.GitHubToken,
		Timeout: cfg.CatalogTimeout,
	})
	if err != nil {
		slog.Error("Failed to create GitHub source", "error", err)
		os.Exit(1)
	}

	engine := diff.NewSFNTEngine()
	if err := validateViews(cfg.Views, engine); err != nil {
		slog.Error("Invalid VIEWS", "error", err)
		os.Exit(1)
	}

	resolver := acquire.NewResolver(catalogCache, githubSource)
	orchestrator := diff.NewOrchestrator(engine, cfg.Views, cfg.DiffLimit, cfg.DiffWorkers)
	appSvc := app.NewService(resolver, orchestrator, store, cfg.Views, clock, pipelineMetrics)

	srv, err := httpserver.NewServer(cfg, appSvc, registry, httpMetrics, healthChecks(pool, redisClient))
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
