package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontdiff/internal/platform/correlation"
)

// correlationMiddleware adopts or mints a request ID, stores it on the
// request context and echoes it back to the client.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		c.Response().Header().Set(correlation.Header, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
