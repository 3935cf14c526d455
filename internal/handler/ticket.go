package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// TicketHandler lists a customer's tickets, renders their QR codes and
// validates them at the door.
type TicketHandler struct {
	Svc        *service.TicketService
	StaffToken string // optional second factor for scanners
}

// NewTicketHandler panics on a nil service.
func NewTicketHandler(svc *service.TicketService, staffToken string) *TicketHandler {
	if svc == nil {
		panic("nil service passed to NewTicketHandler")
	}
	return &TicketHandler{Svc: svc, StaffToken: staffToken}
}

// List handles GET /v1/me/tickets.
func (h *TicketHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.Svc.ListTicketsForUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []service.TicketSummary{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// QRCode handles GET /v1/me/tickets/:id/qr.png?size=.
func (h *TicketHandler) QRCode(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	size := 0
	if raw := c.QueryParam("size"); raw != "" {
		if size, err = strconv.Atoi(raw); err != nil || size <= 0 {
			return badRequest(c, "invalid size")
		}
	}
	png, err := h.Svc.TicketQRCode(c.Request().Context(), id, userID, size)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Blob(http.StatusOK, "image/png", png)
}

// Scan handles POST /v1/tickets/scan. The outcome is always reported in
// the body with 200; only malformed requests fail.
func (h *TicketHandler) Scan(c echo.Context) error {
	if h.StaffToken != "" {
		given := c.Request().Header.Get("X-Staff-Token")
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.StaffToken)) != 1 {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid staff token"})
		}
	}
	var body struct {
		QRToken string `json:"qr_token"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Svc.ScanTicket(c.Request().Context(), body.QRToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
