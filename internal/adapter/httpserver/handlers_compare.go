package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontdiff/internal/domain"
	apperrors "github.com/pscheid92/fontdiff/internal/platform/errors"
)

const (
	defaultView     = "glyphs_new"
	defaultFontSize = 60
	maxFontSize     = 1000
)

// compareModel is everything a renderer needs for one view of a session.
type compareModel struct {
	SessionID    uuid.UUID           `json:"uuid"`
	FontSet      *domain.FontSet     `json:"fontset"`
	Diffs        []domain.DiffRecord `json:"font_diffs"`
	View         string              `json:"view"`
	Views        []string            `json:"views"`
	Limit        int                 `json:"limit"`
	FontSize     int                 `json:"font_size"`
	FontPosition domain.Side         `json:"font_position"`
}

func (s *Server) registerCompareRoutes() {
	s.echo.GET("/compare/:uuid", s.handleCompare)
	s.echo.GET("/compare/:uuid/:view", s.handleCompare)
	s.echo.GET("/compare/:uuid/:view/:font_size", s.handleCompare)

	s.echo.GET("/screenshot/:uuid/:view/:font_position", s.handleScreenshot)
	s.echo.GET("/screenshot/:uuid/:view/:font_position/:font_size", s.handleScreenshot)
}

func (s *Server) handleCompare(c echo.Context) error {
	return s.respondCompare(c, domain.SideBefore)
}

// handleScreenshot renders a single side for screenshot services.
func (s *Server) handleScreenshot(c echo.Context) error {
	side := domain.Side(c.Param("font_position"))
	if !side.Valid() {
		return apperrors.ValidationError("font_position must be before or after").WithContext("font_position", string(side))
	}
	return s.respondCompare(c, side)
}

func (s *Server) respondCompare(c echo.Context, side domain.Side) error {
	model, err := s.loadCompareModel(c, side)
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, model); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// loadCompareModel answers 404 for an unknown session or view, and for a
// computed view without records. Reserved views always render.
func (s *Server) loadCompareModel(c echo.Context, side domain.Side) (*compareModel, error) {
	ctx := c.Request().Context()

	sessionID, err := parseSessionID(c)
	if err != nil {
		return nil, err
	}

	view := c.Param("view")
	if view == "" {
		view = defaultView
	}
	if !s.app.HasView(view) {
		return nil, apperrors.NotFoundError("unknown view").WithContext("view", view)
	}

	fontSize, err := parseFontSize(c.Param("font_size"))
	if err != nil {
		return nil, err
	}

	fs, err := s.app.ReadFontSet(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	diffs, err := s.app.ReadDiffs(ctx, sessionID, view)
	if err != nil {
		return nil, err
	}
	if len(diffs) == 0 && !domain.IsReservedView(view) {
		return nil, apperrors.NotFoundError("no diffs for view").WithContext("view", view)
	}

	return &compareModel{
		SessionID:    sessionID,
		FontSet:      fs,
		Diffs:        diffs,
		View:         view,
		Views:        s.app.Views(),
		Limit:        s.app.DiffLimit(),
		FontSize:     fontSize,
		FontPosition: side,
	}, nil
}

// parseSessionID treats malformed IDs as unknown sessions.
func parseSessionID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("uuid")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NotFoundError("session not found").WithContext("uuid", raw)
	}
	return id, nil
}

func parseFontSize(raw string) (int, error) {
	if raw == "" {
		return defaultFontSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 || size > maxFontSize {
		return 0, apperrors.ValidationError(fmt.Sprintf("font size must be between 1 and %d", maxFontSize)).WithContext("font_size", raw)
	}
	return size, nil
}
