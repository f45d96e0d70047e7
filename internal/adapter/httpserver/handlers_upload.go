package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontdiff/internal/app"
	"github.com/pscheid92/fontdiff/internal/domain"
	apperrors "github.com/pscheid92/fontdiff/internal/platform/errors"
)

type uploadKind int

const (
	uploadUnknown uploadKind = iota
	uploadCatalog
	uploadRemoteDirectory
	uploadDirect
)

const (
	fieldKind      = "fonts"
	fieldAfter     = "fonts_after"
	fieldBefore    = "fonts_before"
	fieldGitHubURL = "github-url"
	fieldAjax      = "__ajax"
)

// Form values of the upload page's "fonts" selector.
var formKinds = map[string]uploadKind{
	"from_gf":         uploadCatalog,
	"from_github_url": uploadRemoteDirectory,
	"from_local":      uploadDirect,
}

// Path values of /api/upload/:upload_type.
var apiKinds = map[string]uploadKind{
	"googlefonts": uploadCatalog,
	"github":      uploadRemoteDirectory,
	"user":        uploadDirect,
}

type ajaxResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

type uploadForm struct {
	values url.Values
	files  map[string][]*multipart.FileHeader
}

func (s *Server) registerUploadRoutes(submission []echo.MiddlewareFunc) {
	s.echo.POST("/upload-fonts", s.handleUploadFonts, submission...)
}

func (s *Server) handleLanding(c echo.Context) error {
	return s.renderTemplate(c, "upload.html", map[string]any{
		"Views": s.app.Views(),
		"Limit": s.app.DiffLimit(),
	})
}

// handleUploadFonts serves the upload page. With __ajax=true it answers
// {"status","msg"} JSON; otherwise it redirects to the first view with
// results.
func (s *Server) handleUploadFonts(c echo.Context) error {
	form, err := parseUpload(c)
	if err != nil {
		return err
	}
	ajax := form.values.Get(fieldAjax) == "true"

	res, err := s.submitForm(c, form, formKinds[form.values.Get(fieldKind)])
	if err != nil {
		if ajax {
			return s.ajaxError(c, err)
		}
		return err
	}

	if ajax {
		if err := c.JSON(http.StatusOK, ajaxResponse{Status: "ok", Msg: res.SessionID.String()}); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}
	return c.Redirect(http.StatusSeeOther, compareURL(res.SessionID.String(), s.landingView(res)))
}

func (s *Server) submitForm(c echo.Context, form *uploadForm, kind uploadKind) (*app.SubmitResult, error) {
	req, err := buildRequest(form, kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.SubmitTimeout)
	defer cancel()

	return s.app.Submit(ctx, req)
}

func buildRequest(form *uploadForm, kind uploadKind) (domain.Request, error) {
	switch kind {
	case uploadCatalog:
		after, err := readFiles(form, fieldAfter)
		if err != nil {
			return nil, err
		}
		return domain.CatalogCompare{After: after}, nil

	case uploadRemoteDirectory:
		return domain.RemoteDirectoryCompare{RepoURL: form.values.Get(fieldGitHubURL)}, nil

	case uploadDirect:
		after, err := readFiles(form, fieldAfter)
		if err != nil {
			return nil, err
		}
		before, err := readFiles(form, fieldBefore)
		if err != nil {
			return nil, err
		}
		return domain.DirectCompare{Before: before, After: after}, nil
	}

	return nil, apperrors.ValidationError("unknown upload type")
}

// parseUpload accepts multipart bodies with files as well as plain
// url-encoded forms, which are enough for repository submissions.
func parseUpload(c echo.Context) (*uploadForm, error) {
	mf, err := c.MultipartForm()
	if err == nil {
		return &uploadForm{values: url.Values(mf.Value), files: mf.File}, nil
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return nil, httpErr
	}
	if !errors.Is(err, http.ErrNotMultipart) {
		return nil, apperrors.ValidationError("malformed multipart form")
	}

	values, err := c.FormParams()
	if err != nil {
		return nil, apperrors.ValidationError("malformed form")
	}
	return &uploadForm{values: values}, nil
}

func readFiles(form *uploadForm, field string) (domain.RawCollection, error) {
	headers := form.files[field]
	files := make(domain.RawCollection, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			return nil, apperrors.ValidationError("failed to read uploaded file").WithContext("file", fh.Filename)
		}
		files = append(files, domain.RawFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s *Server) ajaxError(c echo.Context, err error) error {
	var e *apperrors.Error
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		e = apperrors.WrapHTTPError(httpErr)
	} else {
		e = apperrors.AsStructuredError(err)
	}
	s.httpMetrics.ObserveError(string(e.Type))

	if err := c.JSON(e.HTTPStatus(), ajaxResponse{Status: "error", Msg: e.Message}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// landingView picks the first configured view that has something to show.
func (s *Server) landingView(res *app.SubmitResult) string {
	views := s.app.Views()
	for _, v := range views {
		if !domain.IsReservedView(v) && len(res.Batch.ForView(v)) > 0 {
			return v
		}
	}
	for _, v := range views {
		if domain.IsReservedView(v) {
			return v
		}
	}
	if len(views) > 0 {
		return views[0]
	}
	return defaultView
}

func compareURL(sessionID, view string) string {
	return "/compare/" + sessionID + "/" + url.PathEscape(view)
}
