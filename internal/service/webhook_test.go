package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/cache"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func newWebhookService(t *testing.T, f *fixture, failOpen bool) (*WebhookService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := f.settings
	s.DedupFailOpen = failOpen
	return NewWebhookService(f.deps, s, f.checkout, cache.NewDedup(rdb)), mr
}

func (f *fixture) pendingSession(t *testing.T, userID uint64, codes ...string) *CheckoutSession {
	t.Helper()
	h := f.hold(t, userID, codes...)
	sess, err := f.checkout.CreateCheckoutSession(f.ctx, userID, h.ReservationID, "")
	require.NoError(t, err)
	return sess
}

func TestHandlePaymentEvent_CompletedFinalizesOnce(t *testing.T) {
	f := newFixture(t)
	svc, mr := newWebhookService(t, f, true)
	sess := f.pendingSession(t, 1, "A5", "A6")
	ev := PaymentEvent{EventID: "evt_1", Type: EventCheckoutCompleted, ProviderSessionID: sess.ProviderSessionID}

	ack, err := svc.HandlePaymentEvent(f.ctx, ev)
	require.NoError(t, err)
	assert.True(t, ack.Acknowledged)
	assert.True(t, ack.Finalized)
	assert.False(t, ack.Duplicate)
	assert.Equal(t, model.OrderPaid, ack.OrderStatus)
	assert.Equal(t, 24*time.Hour, mr.TTL("webhook-event:evt_1"))

	dup, err := svc.HandlePaymentEvent(f.ctx, ev)
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.False(t, dup.Finalized)
	assert.Equal(t, 1, f.publisher.count())
}

func TestHandlePaymentEvent_NewEventIDForPaidOrderIsNoOp(t *testing.T) {
	f := newFixture(t)
	svc, _ := newWebhookService(t, f, true)
	sess := f.pendingSession(t, 1, "A7")

	_, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_a", Type: EventCheckoutCompleted, OrderID: sess.OrderID})
	require.NoError(t, err)
	ack, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_b", Type: EventCheckoutCompleted, OrderID: sess.OrderID})
	require.NoError(t, err)

	assert.Equal(t, model.OrderPaid, ack.OrderStatus)
	assert.Equal(t, 1, f.publisher.count())
}

func TestHandlePaymentEvent_ExpiredFailsOrder(t *testing.T) {
	f := newFixture(t)
	svc, _ := newWebhookService(t, f, true)
	sess := f.pendingSession(t, 1, "A8")

	ack, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_x", Type: EventCheckoutExpired, ProviderSessionID: sess.ProviderSessionID})
	require.NoError(t, err)

	assert.Equal(t, model.OrderFailed, ack.OrderStatus)
	assert.False(t, ack.Finalized)
	assert.Equal(t, model.SeatAvailable, f.statuses(t)["A8"])
}

func TestHandlePaymentEvent_IgnoredType(t *testing.T) {
	f := newFixture(t)
	svc, _ := newWebhookService(t, f, true)
	sess := f.pendingSession(t, 1, "A9")

	ack, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_i", Type: "payment_intent.created"})
	require.NoError(t, err)
	assert.True(t, ack.Acknowledged)
	assert.False(t, ack.Finalized)

	o, err := f.checkout.OrderByID(f.ctx, sess.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, o.Status)
}

func TestHandlePaymentEvent_Validation(t *testing.T) {
	f := newFixture(t)
	svc, mr := newWebhookService(t, f, true)

	_, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "  ", Type: EventCheckoutCompleted, OrderID: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_v", Type: EventCheckoutCompleted})
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, mr.Exists("webhook-event:evt_v"))
}

func TestHandlePaymentEvent_FailureReleasesKey(t *testing.T) {
	f := newFixture(t)
	svc, mr := newWebhookService(t, f, true)

	_, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_u", Type: EventCheckoutCompleted, ProviderSessionID: "cs_unknown"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("webhook-event:evt_u"))
}

func TestHandlePaymentEvent_StoreDown(t *testing.T) {
	t.Run("fail open processes the event", func(t *testing.T) {
		f := newFixture(t)
		svc, mr := newWebhookService(t, f, true)
		sess := f.pendingSession(t, 1, "B9")
		mr.Close()

		ack, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_d", Type: EventCheckoutCompleted, ProviderSessionID: sess.ProviderSessionID})
		require.NoError(t, err)
		assert.True(t, ack.Finalized)
		assert.Equal(t, model.OrderPaid, ack.OrderStatus)
	})

	t.Run("fail closed treats it as duplicate", func(t *testing.T) {
		f := newFixture(t)
		svc, mr := newWebhookService(t, f, false)
		sess := f.pendingSession(t, 1, "B10")
		mr.Close()

		ack, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_d", Type: EventCheckoutCompleted, ProviderSessionID: sess.ProviderSessionID})
		require.NoError(t, err)
		assert.True(t, ack.Duplicate)

		o, err := f.checkout.OrderByID(f.ctx, sess.OrderID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderPending, o.Status)
	})

	t.Run("nil store", func(t *testing.T) {
		f := newFixture(t)
		svc := NewWebhookService(f.deps, f.settings, f.checkout, nil)
		sess := f.pendingSession(t, 1, "B11")

		ack, err := svc.HandlePaymentEvent(f.ctx, PaymentEvent{EventID: "evt_n", Type: EventCheckoutCompleted, OrderID: sess.OrderID})
		require.NoError(t, err)
		assert.True(t, ack.Finalized)
	})
}
