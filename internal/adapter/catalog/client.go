// Package catalog fetches fonts by family name from a hosted font catalog
// that serves either a zip archive of the family or a single font file.
package catalog

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pscheid92/fontdiff/internal/adapter/metrics"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/retry"
	"github.com/pscheid92/fontdiff/internal/platform/version"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	maxDownloadSize       = 64 << 20
	retryInitialBackoff   = 200 * time.Millisecond
	retryRateLimitBackoff = 2 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is the number of catalog requests per second. <= 0 disables throttling.
	RateLimit float64
	// Retry overrides the default retry policy when MaxAttempts > 0.
	Retry   retry.Policy
	Breaker *metrics.BreakerMetrics
}

// Client implements domain.CatalogSource over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	policy  retry.Policy
}

var _ domain.CatalogSource = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog URL %q", cfg.BaseURL)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	policy := cfg.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   retryInitialBackoff,
			RateLimitBackoff: retryRateLimitBackoff,
			MaxBackoff:       5 * time.Second,
		}
	}

	breaker := cfg.Breaker
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		// A missing family is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrFamilyNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			breaker.Transition(name, to.String(), breakerValue(to))
		},
	})

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		cb:      cb,
		policy:  policy,
	}, nil
}

func breakerValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return metrics.BreakerClosed
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerOpen
	}
}

// FetchFamily downloads family and returns its regular font, or the first
// font of the archive when no regular style is present.
func (c *Client) FetchFamily(ctx context.Context, family string) (domain.RawFile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.RawFile{}, fmt.Errorf("catalog rate limiter: %w", err)
	}

	out, err := c.cb.Execute(func() (any, error) {
		p := c.policy
		p.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.WarnContext(ctx, "Catalog fetch failed, retrying", "family", family, "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
		}
		return retry.Do(ctx, p, retry.ClassifyHTTP, func() (domain.RawFile, error) {
			return c.fetchOnce(ctx, family)
		})
	})
	if err != nil {
		return domain.RawFile{}, err
	}
	return out.(domain.RawFile), nil
}

func (c *Client) familyURL(family string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("family", family)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchOnce(ctx context.Context, family string) (domain.RawFile, error) {
	target := c.familyURL(family)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.RawFile{}, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RawFile{}, fmt.Errorf("catalog request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return domain.RawFile{}, fmt.Errorf("%w: %s", domain.ErrFamilyNotFound, family)
	case resp.StatusCode != http.StatusOK:
		return domain.RawFile{}, &retry.StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return domain.RawFile{}, fmt.Errorf("failed to read catalog response: %w", err)
	}
	if len(body) > maxDownloadSize {
		return domain.RawFile{}, fmt.Errorf("catalog response for %s exceeds %d bytes", family, maxDownloadSize)
	}

	if isZip(body) {
		return pickFromArchive(body, family)
	}
	if !isFont(body) {
		return domain.RawFile{}, fmt.Errorf("%w: %s (response is neither an archive nor a font)", domain.ErrFamilyNotFound, family)
	}
	return domain.RawFile{Name: downloadName(resp.Header.Get("Content-Disposition"), family), Data: body}, nil
}

func isZip(b []byte) bool {
	return bytes.HasPrefix(b, []byte("PK\x03\x04"))
}

func isFont(b []byte) bool {
	for _, magic := range [][]byte{{0x00, 0x01, 0x00, 0x00}, []byte("OTTO"), []byte("true"), []byte("ttcf")} {
		if bytes.HasPrefix(b, magic) {
			return true
		}
	}
	return false
}

func isFontName(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".ttf" || ext == ".otf"
}

// pickFromArchive prefers "<Family>-Regular" (spaces removed), then any
// Regular, then the first font in name order.
func pickFromArchive(data []byte, family string) (domain.RawFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.RawFile{}, fmt.Errorf("failed to open catalog archive: %w", err)
	}

	var fonts []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && isFontName(f.Name) {
			fonts = append(fonts, f)
		}
	}
	if len(fonts) == 0 {
		return domain.RawFile{}, fmt.Errorf("%w: %s (archive holds no fonts)", domain.ErrFamilyNotFound, family)
	}
	sort.Slice(fonts, func(i, j int) bool { return fonts[i].Name < fonts[j].Name })

	preferred := strings.ToLower(strings.ReplaceAll(family, " ", "") + "-regular")
	chosen := fonts[0]
	if f := findFont(fonts, func(stem string) bool { return stem == preferred }); f != nil {
		chosen = f
	} else if f := findFont(fonts, func(stem string) bool { return strings.HasSuffix(stem, "-regular") }); f != nil {
		chosen = f
	}

	rc, err := chosen.Open()
	if err != nil {
		return domain.RawFile{}, fmt.Errorf("failed to open %s in catalog archive: %w", chosen.Name, err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(io.LimitReader(rc, maxDownloadSize))
	if err != nil {
		return domain.RawFile{}, fmt.Errorf("failed to read %s from catalog archive: %w", chosen.Name, err)
	}
	return domain.RawFile{Name: path.Base(chosen.Name), Data: content}, nil
}

func findFont(fonts []*zip.File, match func(stem string) bool) *zip.File {
	for _, f := range fonts {
		base := path.Base(f.Name)
		if match(strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))) {
			return f
		}
	}
	return nil
}

func downloadName(disposition, family string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := path.Base(params["filename"]); isFontName(name) {
			return name
		}
	}
	return strings.ReplaceAll(family, " ", "") + "-Regular.ttf"
}
