package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	CatalogURL       string        `env:"CATALOG_URL" default:"https://fonts.google.com/download"`
	CatalogTimeout   time.Duration `env:"CATALOG_TIMEOUT" default:"30s"`
	CatalogRateLimit float64       `env:"CATALOG_RATE_LIMIT" default:"5"`
	CatalogCacheTTL  time.Duration `env:"CATALOG_CACHE_TTL" default:"1h"`

	GitHubAPIURL string `env:"GITHUB_API_URL" default:"https://api.github.com"`
	GitHubToken  string `env:"GITHUB_TOKEN"`

	DiffLimit   int      `env:"DIFF_LIMIT" default:"800"`
	DiffWorkers int      `env:"DIFF_WORKERS" default:"4"`
	Views       []string `env:"VIEWS" default:"glyphs_new,glyphs_missing,glyphs_modified,metrics,kerns,editor,waterfall"`

	MaxUploadSize   string        `env:"MAX_UPLOAD_SIZE" default:"64M"`
	SubmitTimeout   time.Duration `env:"SUBMIT_TIMEOUT" default:"2m"`
	UploadRateLimit float64       `env:"UPLOAD_RATE_LIMIT" default:"0.5"`
	UploadBurst     int           `env:"UPLOAD_BURST" default:"5"`
}

// Matches the size strings accepted by echo's BodyLimit middleware.
var uploadSizePattern = regexp.MustCompile(`(?i)^[1-9][0-9]*[KMGTP]?B?$`)

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	if err := validateHTTPURL("CATALOG_URL", cfg.CatalogURL); err != nil {
		return err
	}
	if err := validateHTTPURL("GITHUB_API_URL", cfg.GitHubAPIURL); err != nil {
		return err
	}

	if cfg.DiffLimit < 1 {
		return fmt.Errorf("DIFF_LIMIT must be at least 1, got %d", cfg.DiffLimit)
	}
	if cfg.DiffWorkers < 1 {
		return fmt.Errorf("DIFF_WORKERS must be at least 1, got %d", cfg.DiffWorkers)
	}
	if cfg.CatalogRateLimit < 0 {
		return errors.New("CATALOG_RATE_LIMIT must not be negative")
	}
	if cfg.UploadRateLimit <= 0 || cfg.UploadBurst < 1 {
		return errors.New("UPLOAD_RATE_LIMIT must be positive and UPLOAD_BURST at least 1")
	}
	if cfg.CatalogTimeout <= 0 {
		return errors.New("CATALOG_TIMEOUT must be positive")
	}
	if cfg.CatalogCacheTTL <= 0 {
		return errors.New("CATALOG_CACHE_TTL must be positive")
	}
	if cfg.SubmitTimeout <= 0 {
		return errors.New("SUBMIT_TIMEOUT must be positive")
	}
	if !uploadSizePattern.MatchString(cfg.MaxUploadSize) {
		return fmt.Errorf("MAX_UPLOAD_SIZE %q is not a size like 64M", cfg.MaxUploadSize)
	}

	views, err := normalizeViews(cfg.Views)
	if err != nil {
		return err
	}
	cfg.Views = views

	return nil
}

func normalizeViews(raw []string) ([]string, error) {
	views := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if seen[v] {
			return nil, fmt.Errorf("VIEWS lists %q more than once", v)
		}
		seen[v] = true
		views = append(views, v)
	}
	if len(views) == 0 {
		return nil, errors.New("VIEWS must name at least one view")
	}
	return views, nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}
