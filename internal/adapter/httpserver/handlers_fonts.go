package httpserver

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/fontdiff/internal/platform/errors"
)

func (s *Server) registerFontRoutes() {
	s.echo.GET("/fonts/:ref", s.handleFontFile)
}

// handleFontFile serves stored font bytes by content reference. The
// reference is a sha256, so responses never change.
func (s *Server) handleFontFile(c echo.Context) error {
	ref := c.Param("ref")
	if !isContentRef(ref) {
		return apperrors.NotFoundError("font file not found").WithContext("ref", ref)
	}

	etag := `"` + ref + `"`
	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	data, err := s.app.ReadFontFile(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, fontContentType(data), data)
}

func isContentRef(ref string) bool {
	if len(ref) != 64 {
		return false
	}
	for i := 0; i < len(ref); i++ {
		b := ref[i]
		if (b < '0' || b > '9') && (b < 'a' || b > 'f') {
			return false
		}
	}
	return true
}

func fontContentType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("OTTO")):
		return "font/otf"
	case bytes.HasPrefix(data, []byte("ttcf")):
		return "font/collection"
	case bytes.HasPrefix(data, []byte("wOFF")):
		return "font/woff"
	case bytes.HasPrefix(data, []byte("wOF2")):
		return "font/woff2"
	default:
		return "font/ttf"
	}
}
