package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/fontdiff/internal/platform/errors"
)

func (s *Server) registerAPIRoutes(submission []echo.MiddlewareFunc) {
	api := s.echo.Group("/api")
	api.POST("/upload/:upload_type", s.handleAPIUpload, submission...)
	api.GET("/info/:uuid", s.handleInfo)
	api.GET("/fontsets/:uuid", s.handleFontSet)
	api.GET("/diffs/:uuid/:view", s.handleDiffs)
}

// handleAPIUpload runs a submission and redirects to its info document.
func (s *Server) handleAPIUpload(c echo.Context) error {
	kind, ok := apiKinds[c.Param("upload_type")]
	if !ok {
		return apperrors.ValidationError("unknown upload type").WithContext("upload_type", c.Param("upload_type"))
	}

	form, err := parseUpload(c)
	if err != nil {
		return err
	}

	res, err := s.submitForm(c, form, kind)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/api/info/"+res.SessionID.String())
}

func (s *Server) handleInfo(c echo.Context) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	info, err := s.app.Info(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, info); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleFontSet(c echo.Context) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	fs, err := s.app.ReadFontSet(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, fs); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleDiffs returns the records of one view; an existing session with no
// records for a configured view yields an empty list.
func (s *Server) handleDiffs(c echo.Context) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	view := c.Param("view")
	if !s.app.HasView(view) {
		return apperrors.NotFoundError("unknown view").WithContext("view", view)
	}

	diffs, err := s.app.ReadDiffs(c.Request().Context(), sessionID, view)
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, diffs); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
