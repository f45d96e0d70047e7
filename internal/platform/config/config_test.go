package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "https://fonts.google.com/download", cfg.CatalogURL)
	assert.Equal(t, 30*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, time.Hour, cfg.CatalogCacheTTL)
	assert.Equal(t, "https://api.github.com", cfg.GitHubAPIURL)
	assert.Equal(t, 800, cfg.DiffLimit)
	assert.Equal(t, 4, cfg.DiffWorkers)
	assert.Equal(t, "64M", cfg.MaxUploadSize)
	assert.Equal(t, 2*time.Minute, cfg.SubmitTimeout)
	assert.InDelta(t, 0.5, cfg.UploadRateLimit, 0)
	assert.Equal(t, 5, cfg.UploadBurst)
	assert.Equal(t, []string{"glyphs_new", "glyphs_missing", "glyphs_modified", "metrics", "kerns", "editor", "waterfall"}, cfg.Views)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_CustomPortAndEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_OptionalBackends(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fontdiff")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/fontdiff", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
}

func TestLoad_ViewsAreTrimmed(t *testing.T) {
	t.Setenv("VIEWS", " glyphs_new , metrics,,editor ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"glyphs_new", "metrics", "editor"}, cfg.Views)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"zero diff limit", map[string]string{"DIFF_LIMIT": "0"}, "DIFF_LIMIT must be at least 1, got 0"},
		{"negative diff limit", map[string]string{"DIFF_LIMIT": "-3"}, "DIFF_LIMIT must be at least 1, got -3"},
		{"zero workers", map[string]string{"DIFF_WORKERS": "0"}, "DIFF_WORKERS must be at least 1, got 0"},
		{"blank views", map[string]string{"VIEWS": " , "}, "VIEWS must name at least one view"},
		{"duplicate views", map[string]string{"VIEWS": "metrics,kerns,metrics"}, `VIEWS lists "metrics" more than once`},
		{"relative catalog url", map[string]string{"CATALOG_URL": "/download"}, `CATALOG_URL must be an absolute http(s) URL, got "/download"`},
		{"ftp github url", map[string]string{"GITHUB_API_URL": "ftp://api.github.com"}, `GITHUB_API_URL must be an absolute http(s) URL, got "ftp://api.github.com"`},
		{"negative rate limit", map[string]string{"CATALOG_RATE_LIMIT": "-1"}, "CATALOG_RATE_LIMIT must not be negative"},
		{"zero upload rate", map[string]string{"UPLOAD_RATE_LIMIT": "0"}, "UPLOAD_RATE_LIMIT must be positive and UPLOAD_BURST at least 1"},
		{"zero upload burst", map[string]string{"UPLOAD_BURST": "0"}, "UPLOAD_RATE_LIMIT must be positive and UPLOAD_BURST at least 1"},
		{"zero cache ttl", map[string]string{"CATALOG_CACHE_TTL": "0s"}, "CATALOG_CACHE_TTL must be positive"},
		{"zero submit timeout", map[string]string{"SUBMIT_TIMEOUT": "0s"}, "SUBMIT_TIMEOUT must be positive"},
		{"bad upload size", map[string]string{"MAX_UPLOAD_SIZE": "lots"}, `MAX_UPLOAD_SIZE "lots" is not a size like 64M`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_UnparsableValue(t *testing.T) {
	t.Setenv("DIFF_LIMIT", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}

func TestLoad_UploadSizeForms(t *testing.T) {
	for _, size := range []string{"1024", "512K", "64M", "1G", "10MB"} {
		t.Run(size, func(t *testing.T) {
			t.Setenv("MAX_UPLOAD_SIZE", size)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, size, cfg.MaxUploadSize)
		})
	}
}
