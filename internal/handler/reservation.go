package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// ReservationHandler exposes seat holds to customers. JWT and role checks
// run in middleware before any method here.
type ReservationHandler struct {
	Svc *service.ReservationService
}

// NewReservationHandler panics on a nil service.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

type createHoldRequest struct {
	ShowtimeID uint64   `json:"showtime_id"`
	SeatIDs    []uint64 `json:"seat_ids"`
}

// Create handles POST /v1/reservations. On success it returns 201 with
// the hold. Taken seats yield 409 listing unavailable_seat_ids.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createHoldRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ShowtimeID == 0 {
		return badRequest(c, "showtime_id is required")
	}
	if len(body.SeatIDs) == 0 {
		return badRequest(c, "seat_ids is required")
	}
	view, err := h.Svc.CreateHold(c.Request().Context(), service.HoldRequest{
		UserID:     userID,
		ShowtimeID: body.ShowtimeID,
		SeatIDs:    body.SeatIDs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// Active handles GET /v1/reservations/active?showtime_id=. The body is
// null when the user holds nothing for the showtime.
func (h *ReservationHandler) Active(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	showtimeID, err := strconv.ParseUint(c.QueryParam("showtime_id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return badRequest(c, "invalid showtime_id")
	}
	view, err := h.Svc.GetActiveHold(c.Request().Context(), userID, showtimeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	view, err := h.Svc.GetHold(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Release handles DELETE /v1/reservations/:id and frees the held seats.
func (h *ReservationHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if err := h.Svc.ReleaseHold(c.Request().Context(), id, userID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
