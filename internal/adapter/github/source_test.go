package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		raw  string
		want Location
	}{
		{"https://github.com/googlefonts/roboto", Location{Owner: "googlefonts", Repo: "roboto"}},
		{"https://github.com/googlefonts/roboto.git", Location{Owner: "googlefonts", Repo: "roboto"}},
		{"https://www.github.com/googlefonts/roboto/tree/main", Location{Owner: "googlefonts", Repo: "roboto", Ref: "main"}},
		{"https://github.com/googlefonts/roboto/tree/v3.0/fonts/ttf/", Location{Owner: "googlefonts", Repo: "roboto", Ref: "v3.0", Dir: "fonts/ttf"}},
		{"https://github.com/googlefonts/roboto/blob/main/fonts/ttf/Roboto-Bold.ttf", Location{Owner: "googlefonts", Repo: "roboto", Ref: "main", Dir: "fonts/ttf", File: "fonts/ttf/Roboto-Bold.ttf"}},
		{"https://github.com/googlefonts/roboto/blob/main/Roboto.OTF", Location{Owner: "googlefonts", Repo: "roboto", Ref: "main", File: "Roboto.OTF"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRepoURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepoURL_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"ftp://github.com/a/b",
		"https://gitlab.com/a/b",
		"https://github.com/onlyowner",
		"https://github.com/a/b/issues/1",
		"https://github.com/a/b/tree",
		"https://github.com/a/b/blob/main/README.md",
		"https://github.com/a/b/blob/main",
		"://bad",
	} {
		_, err := ParseRepoURL(raw)
		assert.ErrorIs(t, err, domain.ErrSourceUnreachable, raw)
	}
}

type fakeGitHub struct {
	t        *testing.T
	token    string
	tree     []map[string]any
	blobs    map[string]string
	failures atomic.Int32
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.token != "" {
		assert.Equal(f.t, "Bearer "+f.token, r.Header.Get("Authorization"))
	}
	assert.True(f.t, strings.HasPrefix(r.Header.Get("User-Agent"), "fontdiff/"))

	switch {
	case r.URL.Path == "/repos/acme/fonts":
		_ = json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
	case r.URL.Path == "/repos/acme/fonts/git/trees/main":
		assert.Equal(f.t, "1", r.URL.Query().Get("recursive"))
		_ = json.NewEncoder(w).Encode(map[string]any{"sha": "main", "tree": f.tree})
	case strings.HasPrefix(r.URL.Path, "/repos/acme/fonts/git/blobs/"):
		if f.failures.Load() > 0 {
			f.failures.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		data, ok := f.blobs[strings.TrimPrefix(r.URL.Path, "/repos/acme/fonts/git/blobs/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(data))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFake(t *testing.T) *fakeGitHub {
	return &fakeGitHub{
		t:     t,
		token: "secret",
		tree: []map[string]any{
			{"path": "README.md", "type": "blob", "size": 10, "sha": "s0"},
			{"path": "fonts", "type": "tree", "sha": "s1"},
			{"path": "fonts/ttf/Acme-Regular.ttf", "type": "blob", "size": 4, "sha": "s2"},
			{"path": "fonts/otf/Acme-Bold.OTF", "type": "blob", "size": 4, "sha": "s3"},
			{"path": "fonts/ttf/Acme-Italic.ttf", "type": "blob", "size": 4, "sha": "s4"},
			{"path": "sources/Acme.glyphs", "type": "blob", "size": 4, "sha": "s5"},
		},
		blobs: map[string]string{
			"s2": "reg",
			"s3": "bold",
			"s4": "ital",
		},
	}
}

func newTestSource(t *testing.T, handler http.Handler) *Source {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src, err := NewSource(Config{
		APIURL:  srv.URL,
		Token:   "secret",
		Timeout: 5 * time.Second,
		Retry:   retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, RateLimitBackoff: time.Millisecond},
	})
	require.NoError(t, err)
	return src
}

func TestListFontFiles_DefaultBranchWholeRepo(t *testing.T) {
	src := newTestSource(t, newFake(t))

	files, err := src.ListFontFiles(context.Background(), "https://github.com/acme/fonts")
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, "fonts/otf/Acme-Bold.OTF", files[0].Name)
	assert.Equal(t, "bold", string(files[0].Data))
	assert.Equal(t, "fonts/ttf/Acme-Italic.ttf", files[1].Name)
	assert.Equal(t, "fonts/ttf/Acme-Regular.ttf", files[2].Name)
}

func TestListFontFiles_Subdirectory(t *testing.T) {
	src := newTestSource(t, newFake(t))

	files, err := src.ListFontFiles(context.Background(), "https://github.com/acme/fonts/tree/main/fonts/ttf")
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "fonts/ttf/Acme-Italic.ttf", files[0].Name)
	assert.Equal(t, "ital", string(files[0].Data))
}

func TestListFontFiles_EmptyDirectory(t *testing.T) {
	src := newTestSource(t, newFake(t))

	files, err := src.ListFontFiles(context.Background(), "https://github.com/acme/fonts/tree/main/sources")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListFontFiles_RetriesTransientDownloadErrors(t *testing.T) {
	fake := newFake(t)
	fake.failures.Store(2)
	src := newTestSource(t, fake)

	files, err := src.ListFontFiles(context.Background(), "https://github.com/acme/fonts/tree/main/fonts/otf")
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestListFontFiles_UnknownRepository(t *testing.T) {
	src := newTestSource(t, newFake(t))

	_, err := src.ListFontFiles(context.Background(), "https://github.com/acme/missing")
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)

	var statusErr *retry.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestListFontFiles_InvalidURL(t *testing.T) {
	src := newTestSource(t, newFake(t))

	_, err := src.ListFontFiles(context.Background(), "https://example.com/acme/fonts")
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)
}

func TestListFontFiles_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	src, err := NewSource(Config{APIURL: srv.URL, Timeout: time.Second, Retry: retry.Policy{MaxAttempts: 1}})
	require.NoError(t, err)

	_, err = src.ListFontFiles(context.Background(), "https://github.com/acme/fonts/tree/main")
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)
}

func TestListFontFiles_Cancelled(t *testing.T) {
	src := newTestSource(t, newFake(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.ListFontFiles(ctx, "https://github.com/acme/fonts")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrSourceUnreachable)
}

func TestListFontFiles_BlobURLListsOneFile(t *testing.T) {
	src := newTestSource(t, newFake(t))

	files, err := src.ListFontFiles(context.Background(), "https://github.com/acme/fonts/blob/main/fonts/ttf/Acme-Italic.ttf")
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "fonts/ttf/Acme-Italic.ttf", files[0].Name)
	assert.Equal(t, "ital", string(files[0].Data))
}

func TestListFontFiles_RateLimitedTreeIsRetried(t *testing.T) {
	fake := newFake(t)
	var limited atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/git/trees/") && !limited.Swap(true) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fake.ServeHTTP(w, r)
	})
	src := newTestSource(t, handler)

	files, err := src.ListFontFiles(context.Background(), "https://github.com/acme/fonts/tree/main/fonts/otf")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
