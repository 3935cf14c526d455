package handler // handler holds the Echo HTTP handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the authenticated user's id stored by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.CurrentUserID(c); ok {
		return id, nil
	}
	return 0, errNoUser
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// writeError maps a service error to its HTTP response. Unexpected
// errors are logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	var conflict *service.SeatConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":                "some seats are not available",
			"unavailable_seat_ids": conflict.SeatIDs,
		})
	}
	var missing *service.MissingSeatsError
	if errors.As(err, &missing) {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":            "some seats do not exist for this showtime",
			"missing_seat_ids": missing.SeatIDs,
		})
	}
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	logger.FromContext(c.Request().Context(), nil).Error("request failed",
		"path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
