package catalog

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/retry"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var fastRetry = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, RateLimitBackoff: time.Millisecond}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/download", Timeout: 5 * time.Second, Retry: fastRetry})
	require.NoError(t, err)
	return c, &hits
}

func archive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetchFamily_PicksRegularFromArchive(t *testing.T) {
	body := archive(t, map[string][]byte{
		"OFL.txt":                       []byte("license"),
		"static/RobotoMono-Bold.ttf":    gobold.TTF,
		"static/RobotoMono-Regular.ttf": goregular.TTF,
	})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download", r.URL.Path)
		assert.Equal(t, "Roboto Mono", r.URL.Query().Get("family"))
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	})

	file, err := c.FetchFamily(context.Background(), "Roboto Mono")
	require.NoError(t, err)
	assert.Equal(t, "RobotoMono-Regular.ttf", file.Name)
	assert.Equal(t, goregular.TTF, file.Data)
}

func TestFetchFamily_FallsBackToFirstFont(t *testing.T) {
	body := archive(t, map[string][]byte{
		"Lobster-Italic.ttf": goregular.TTF,
		"Lobster-Black.ttf":  gobold.TTF,
	})
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})

	file, err := c.FetchFamily(context.Background(), "Lobster")
	require.NoError(t, err)
	assert.Equal(t, "Lobster-Black.ttf", file.Name)
}

func TestFetchFamily_RawFontResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Go-Regular.ttf"`)
		_, _ = w.Write(goregular.TTF)
	})

	file, err := c.FetchFamily(context.Background(), "Go")
	require.NoError(t, err)
	assert.Equal(t, "Go-Regular.ttf", file.Name)
	assert.Equal(t, goregular.TTF, file.Data)
}

func TestFetchFamily_NotFoundIsNotRetried(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.FetchFamily(context.Background(), "Nope")
	assert.ErrorIs(t, err, domain.ErrFamilyNotFound)
	assert.EqualValues(t, 1, hits.Load())
}

func TestFetchFamily_ArchiveWithoutFonts(t *testing.T) {
	body := archive(t, map[string][]byte{"README.md": []byte("empty")})
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})

	_, err := c.FetchFamily(context.Background(), "Empty")
	assert.ErrorIs(t, err, domain.ErrFamilyNotFound)
}

func TestFetchFamily_HTMLResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>family picker</html>"))
	})

	_, err := c.FetchFamily(context.Background(), "Go")
	assert.ErrorIs(t, err, domain.ErrFamilyNotFound)
}

func TestFetchFamily_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(goregular.TTF)
	})

	_, err := c.FetchFamily(context.Background(), "Go")
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
}

func TestFetchFamily_ServerErrorExhaustsRetries(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.FetchFamily(context.Background(), "Go")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrFamilyNotFound)

	var statusErr *retry.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
}

func TestFetchFamily_BreakerOpensOnOutage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second, Retry: retry.Policy{MaxAttempts: 1}})
	require.NoError(t, err)

	// gobreaker trips after more than five consecutive failures.
	for range 6 {
		_, err := c.FetchFamily(context.Background(), "Go")
		require.Error(t, err)
	}

	_, err = c.FetchFamily(context.Background(), "Go")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 6, hits.Load())
}

func TestFetchFamily_NotFoundDoesNotTripBreaker(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for range 10 {
		_, err := c.FetchFamily(context.Background(), "Nope")
		assert.ErrorIs(t, err, domain.ErrFamilyNotFound)
	}
	assert.EqualValues(t, 10, hits.Load())
}

func TestFetchFamily_CancelledContext(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(goregular.TTF)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchFamily(ctx, "Go")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "Foo-Bold.otf", downloadName(`attachment; filename="Foo-Bold.otf"`, "Foo"))
	assert.Equal(t, "OpenSans-Regular.ttf", downloadName("", "Open Sans"))
	assert.Equal(t, "OpenSans-Regular.ttf", downloadName(`attachment; filename="../etc/passwd"`, "Open Sans"))
}
