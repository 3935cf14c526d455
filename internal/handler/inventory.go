package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// InventoryHandler serves seat maps publicly and seat provisioning to
// admins.
type InventoryHandler struct {
	Svc *service.InventoryService
}

// NewInventoryHandler panics on a nil service.
func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	if svc == nil {
		panic("nil service passed to NewInventoryHandler")
	}
	return &InventoryHandler{Svc: svc}
}

// ShowtimeSeats handles GET /v1/showtimes/:id/seats.
func (h *InventoryHandler) ShowtimeSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	seats, err := h.Svc.ShowtimeSeatMap(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if seats == nil {
		seats = []model.SeatWithStatus{}
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": id, "seats": seats})
}

// AuditoriumSeats handles GET /v1/auditoriums/:id/seats. The response is
// immutable once provisioned and is served through the Redis cache.
func (h *InventoryHandler) AuditoriumSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid auditorium id")
	}
	layout, err := h.Svc.AuditoriumSeats(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, layout)
}

// ProvisionAuditorium handles POST /v1/admin/auditoriums/:id/seats.
// It returns 201 when seats were created and 200 when the auditorium was
// already provisioned.
func (h *InventoryHandler) ProvisionAuditorium(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid auditorium id")
	}
	created, err := h.Svc.EnsureAuditoriumSeatInventory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusOK
	if created > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"auditorium_id": id, "seats_created": created})
}

// SyncShowtime handles POST /v1/admin/showtimes/:id/seats/sync.
func (h *InventoryHandler) SyncShowtime(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	res, err := h.Svc.SyncShowtimeSeatStatuses(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UpdateShowtime handles PATCH /v1/admin/showtimes/:id. Only the fields
// present in the body change.
func (h *InventoryHandler) UpdateShowtime(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	var patch model.ShowtimePatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	st, err := h.Svc.UpdateShowtime(c.Request().Context(), id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
