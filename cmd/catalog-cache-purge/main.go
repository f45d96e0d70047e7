package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/pscheid92/fontdiff/internal/adapter/redis"
	"github.com/pscheid92/fontdiff/internal/platform/logging"
)

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		dryRun   = flag.Bool("dry-run", false, "count cached families without deleting them")
		verbose  = flag.Bool("verbose", false, "log every cached family")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	start := time.Now()
	found, err := redis.PurgeCatalogCache(ctx, rdb, *dryRun)
	if err != nil {
		log.Fatalf("Purge failed: %v", err)
	}

	slog.Info("Catalog cache purge complete",
		"families", found,
		"dry_run", *dryRun,
		"duration_ms", time.Since(start).Milliseconds())
}

// sanitizeURL hides the password of a Redis URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
