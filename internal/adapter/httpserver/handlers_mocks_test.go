package httpserver

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/fontdiff/internal/app"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/config"
	"github.com/stretchr/testify/require"
)

var testViews = []string{"glyphs_new", "glyphs_missing", "metrics", "editor", "waterfall"}

type mockAppService struct {
	submitFn   func(ctx context.Context, req domain.Request) (*app.SubmitResult, error)
	fontSetFn  func(ctx context.Context, sessionID uuid.UUID) (*domain.FontSet, error)
	diffsFn    func(ctx context.Context, sessionID uuid.UUID, view string) ([]domain.DiffRecord, error)
	fontFileFn func(ctx context.Context, contentRef string) ([]byte, error)
	infoFn     func(ctx context.Context, sessionID uuid.UUID) (*app.Info, error)

	submitted []domain.Request
}

func (m *mockAppService) Submit(ctx context.Context, req domain.Request) (*app.SubmitResult, error) {
	m.submitted = append(m.submitted, req)
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return &app.SubmitResult{SessionID: uuid.New()}, nil
}

func (m *mockAppService) ReadFontSet(ctx context.Context, sessionID uuid.UUID) (*domain.FontSet, error) {
	if m.fontSetFn != nil {
		return m.fontSetFn(ctx, sessionID)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockAppService) ReadDiffs(ctx context.Context, sessionID uuid.UUID, view string) ([]domain.DiffRecord, error) {
	if m.diffsFn != nil {
		return m.diffsFn(ctx, sessionID, view)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockAppService) ReadFontFile(ctx context.Context, contentRef string) ([]byte, error) {
	if m.fontFileFn != nil {
		return m.fontFileFn(ctx, contentRef)
	}
	return nil, domain.ErrFontFileNotFound
}

func (m *mockAppService) Info(ctx context.Context, sessionID uuid.UUID) (*app.Info, error) {
	if m.infoFn != nil {
		return m.infoFn(ctx, sessionID)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockAppService) Views() []string { return testViews }

func (m *mockAppService) HasView(view string) bool { return slices.Contains(testViews, view) }

func (m *mockAppService) DiffLimit() int { return 800 }

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:          "test",
		Port:            "0",
		MaxUploadSize:   "1M",
		SubmitTimeout:   5 * time.Second,
		UploadRateLimit: 1000,
		UploadBurst:     1000,
	}
}

func newTestServer(t *testing.T, svc appService, opts ...func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	srv, err := NewServer(cfg, svc, nil, nil, nil)
	require.NoError(t, err)
	return srv
}

func withHealthChecks(srv *Server, checks ...HealthCheck) *Server {
	srv.healthChecks = checks
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	return serve(srv, httptest.NewRequest(http.MethodGet, target, nil))
}

type upload struct {
	fields map[string]string
	files  map[string][]domain.RawFile
}

func (u upload) request(t *testing.T, target string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range u.fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, files := range u.files {
		for _, f := range files {
			part, err := w.CreateFormFile(field, f.Name)
			require.NoError(t, err)
			_, err = part.Write(f.Data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func storedSession(id uuid.UUID) *domain.FontSet {
	return &domain.FontSet{
		SessionID: id,
		Before:    []domain.Font{{FamilyName: "Roboto", Style: "Regular", FullName: "Roboto Regular", Side: domain.SideBefore}},
		After:     []domain.Font{{FamilyName: "Roboto", Style: "Regular", FullName: "Roboto Regular", Side: domain.SideAfter}},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
