package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// CheckoutHandler turns a customer's hold into an order and lets the
// customer confirm it after paying.
type CheckoutHandler struct {
	Svc *service.CheckoutService
}

// NewCheckoutHandler panics on a nil service.
func NewCheckoutHandler(svc *service.CheckoutService) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Svc: svc}
}

// CreateSession handles POST /v1/checkout/session. Calling it again for
// the same reservation returns the existing session.
func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		ReservationID uint64 `json:"reservation_id"`
		Provider      string `json:"provider"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ReservationID == 0 {
		return badRequest(c, "reservation_id is required")
	}
	sess, err := h.Svc.CreateCheckoutSession(c.Request().Context(), userID, body.ReservationID, body.Provider)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// Confirm handles POST /v1/checkout/confirm. It finalizes the order
// and returns its tickets, or the FAILED status when the hold lapsed.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		OrderID uint64 `json:"order_id"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.OrderID == 0 {
		return badRequest(c, "order_id is required")
	}
	res, err := h.Svc.ConfirmOrder(c.Request().Context(), body.OrderID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
