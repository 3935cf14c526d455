package service

import (
	"context"
	"strings"
	"time"
)

// Payment provider event types acted upon. Every other type is
// acknowledged and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

const webhookKeyPrefix = "webhook-event:"

// DedupStore remembers event ids for a while. SetIfAbsent reports
// whether key was newly stored.
type DedupStore interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// PaymentEvent is a payment provider webhook delivery.
type PaymentEvent struct {
	EventID           string
	Type              string
	ProviderSessionID string
	OrderID           uint64
}

// WebhookAck is the response to a webhook delivery.
type WebhookAck struct {
	Acknowledged bool   `json:"acknowledged"`
	Duplicate    bool   `json:"duplicate"`
	Finalized    bool   `json:"finalized"`
	OrderStatus  string `json:"order_status,omitempty"`
}

// WebhookService lets each provider event id through at most once within
// the dedup TTL and dispatches it to checkout.
type WebhookService struct {
	base
	checkout *CheckoutService
	store    DedupStore
	ttl      time.Duration
	failOpen bool
}

// NewWebhookService builds a WebhookService. A nil store behaves like a
// store that is down.
func NewWebhookService(d Deps, s Settings, checkout *CheckoutService, store DedupStore) *WebhookService {
	if s.WebhookTTL <= 0 {
		s.WebhookTTL = DefaultSettings().WebhookTTL
	}
	return &WebhookService{
		base:     newBase(d),
		checkout: checkout,
		store:    store,
		ttl:      s.WebhookTTL,
		failOpen: s.DedupFailOpen,
	}
}

// HandlePaymentEvent records the event id and, the first time it is seen,
// finalizes or fails the referenced order. Repeat deliveries are
// acknowledged as duplicates without touching any order. When the dedup
// store is unreachable the event is treated as new if the service fails
// open, and as a duplicate otherwise.
func (s *WebhookService) HandlePaymentEvent(ctx context.Context, ev PaymentEvent) (*WebhookAck, error) {
	ev.EventID = strings.TrimSpace(ev.EventID)
	if ev.EventID == "" {
		return nil, newError(ErrValidation, "event id is required")
	}
	if (ev.Type == EventCheckoutCompleted || ev.Type == EventCheckoutExpired) &&
		ev.ProviderSessionID == "" && ev.OrderID == 0 {
		return nil, newError(ErrValidation, "provider_session_id or order_id is required")
	}

	key := webhookKeyPrefix + ev.EventID
	log := s.logger(ctx).With("event_id", ev.EventID, "event_type", ev.Type)

	fresh, stored := s.claim(ctx, key)
	if !stored {
		s.metrics.WebhookEvent("store_error")
		log.Warn("webhook dedup store unavailable", "fail_open", s.failOpen)
	}
	if !fresh {
		s.metrics.WebhookEvent("duplicate")
		log.Info("duplicate webhook event ignored")
		return &WebhookAck{Acknowledged: true, Duplicate: true}, nil
	}

	ack, err := s.dispatch(ctx, ev)
	if err != nil {
		if stored {
			// let the provider's retry through
			if ferr := s.store.Forget(ctx, key); ferr != nil {
				log.Warn("webhook dedup key not released", "error", ferr)
			}
		}
		return nil, err
	}
	return ack, nil
}

// claim stores key and reports whether the event is new and whether the
// store answered at all.
func (s *WebhookService) claim(ctx context.Context, key string) (fresh, stored bool) {
	if s.store == nil {
		return s.failOpen, false
	}
	ok, err := s.store.SetIfAbsent(ctx, key, s.ttl)
	if err != nil {
		return s.failOpen, false
	}
	return ok, true
}

func (s *WebhookService) dispatch(ctx context.Context, ev PaymentEvent) (*WebhookAck, error) {
	switch ev.Type {
	case EventCheckoutCompleted:
		orderID, err := s.resolveOrder(ctx, ev)
		if err != nil {
			return nil, err
		}
		res, err := s.checkout.FinalizePaidOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		s.metrics.WebhookEvent("processed")
		return &WebhookAck{Acknowledged: true, Finalized: true, OrderStatus: res.OrderStatus}, nil
	case EventCheckoutExpired:
		orderID, err := s.resolveOrder(ctx, ev)
		if err != nil {
			return nil, err
		}
		res, err := s.checkout.FailOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		s.metrics.WebhookEvent("processed")
		return &WebhookAck{Acknowledged: true, OrderStatus: res.OrderStatus}, nil
	default:
		s.metrics.WebhookEvent("ignored")
		return &WebhookAck{Acknowledged: true}, nil
	}
}

// resolveOrder prefers the provider session id over the order id.
func (s *WebhookService) resolveOrder(ctx context.Context, ev PaymentEvent) (uint64, error) {
	if ev.ProviderSessionID != "" {
		o, err := s.checkout.OrderByProviderSession(ctx, ev.ProviderSessionID)
		if err != nil {
			return 0, err
		}
		return o.ID, nil
	}
	o, err := s.checkout.OrderByID(ctx, ev.OrderID)
	if err != nil {
		return 0, err
	}
	return o.ID, nil
}
