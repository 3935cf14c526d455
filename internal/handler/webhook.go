package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

const maxWebhookBody = 64 << 10

// WebhookHandler receives payment provider deliveries. Every delivery
// must carry the shared secret; when a Stripe signing secret is set the
// Stripe-Signature header is verified as well.
type WebhookHandler struct {
	Svc           *service.WebhookService
	Secret        string
	SigningSecret string
}

// NewWebhookHandler panics on a nil service.
func NewWebhookHandler(svc *service.WebhookService, secret, signingSecret string) *WebhookHandler {
	if svc == nil {
		panic("nil service passed to NewWebhookHandler")
	}
	return &WebhookHandler{Svc: svc, Secret: secret, SigningSecret: signingSecret}
}

// webhookBody accepts the flat delivery format as well as Stripe's
// event envelope, where the session sits under data.object.
type webhookBody struct {
	EventID string `json:"event_id"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Data    struct {
		ProviderSessionID string          `json:"provider_session_id"`
		OrderID           json.RawMessage `json:"order_id"`
		Object            *struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (b webhookBody) event() (service.PaymentEvent, bool) {
	ev := service.PaymentEvent{
		EventID:           b.EventID,
		Type:              b.Type,
		ProviderSessionID: b.Data.ProviderSessionID,
	}
	if ev.EventID == "" {
		ev.EventID = b.ID
	}
	rawOrder := ""
	if len(b.Data.OrderID) > 0 && string(b.Data.OrderID) != "null" {
		var n uint64
		if err := json.Unmarshal(b.Data.OrderID, &n); err == nil {
			ev.OrderID = n
		} else if err := json.Unmarshal(b.Data.OrderID, &rawOrder); err != nil {
			return ev, false
		}
	}
	if obj := b.Data.Object; obj != nil {
		if ev.ProviderSessionID == "" {
			ev.ProviderSessionID = obj.ID
		}
		if rawOrder == "" && ev.OrderID == 0 {
			rawOrder = obj.Metadata["order_id"]
		}
	}
	if rawOrder != "" {
		n, err := strconv.ParseUint(rawOrder, 10, 64)
		if err != nil {
			return ev, false
		}
		ev.OrderID = n
	}
	return ev, true
}

// Payments handles POST /v1/webhooks/payments. Duplicate deliveries are
// acknowledged with 200 and duplicate=true so the provider stops
// retrying.
func (h *WebhookHandler) Payments(c echo.Context) error {
	given := c.Request().Header.Get("X-Webhook-Secret")
	if h.Secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook secret"})
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	if h.SigningSecret != "" {
		if err := webhook.ValidatePayload(payload, c.Request().Header.Get("Stripe-Signature"), h.SigningSecret); err != nil {
			logger.FromContext(c.Request().Context(), nil).Warn("webhook signature rejected", "error", err)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
		}
	}

	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, ok := body.event()
	if !ok {
		return badRequest(c, "invalid order_id")
	}
	ack, err := h.Svc.HandlePaymentEvent(c.Request().Context(), ev)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ack)
}
