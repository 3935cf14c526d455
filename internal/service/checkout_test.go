package service

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestSeatPriceCents(t *testing.T) {
	assert.Equal(t, uint32(1500), SeatPriceCents(model.SeatTypeStandard))
	assert.Equal(t, uint32(2000), SeatPriceCents(model.SeatTypePremium))
	assert.Equal(t, uint32(2600), SeatPriceCents(model.SeatTypeVIP))
	assert.Equal(t, uint32(1500), SeatPriceCents("BALCONY"))
}

func TestCreateCheckoutSession(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "A1", "C1", "E1")

	sess, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
	require.NoError(t, err)

	assert.Equal(t, uint32(2600+2000+1500), sess.TotalCents)
	assert.Equal(t, "USD", sess.Currency)
	assert.Equal(t, "mock", sess.Provider)
	assert.Equal(t, model.OrderPending, sess.Status)
	assert.True(t, strings.HasPrefix(sess.ProviderSessionID, "cs_"))
	assert.Len(t, sess.ProviderSessionID, 3+32)

	u, err := url.Parse(sess.CheckoutURL)
	require.NoError(t, err)
	assert.Equal(t, "/checkout/processing", u.Path)
	assert.Equal(t, strconv.FormatUint(sess.OrderID, 10), u.Query().Get("order_id"))
	assert.Equal(t, sess.ProviderSessionID, u.Query().Get("session_id"))
}

func TestCreateCheckoutSession_ReturnsExistingOrder(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "E5")

	first, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "stripe")
	require.NoError(t, err)
	second, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "mock")
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.ProviderSessionID, second.ProviderSessionID)
	assert.Equal(t, "stripe", second.Provider)
}

func TestCreateCheckoutSession_Rejections(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "E6")

	_, err := f.checkout.CreateCheckoutSession(f.ctx, 2, h.ReservationID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	f.clock.Advance(9 * time.Minute)
	_, err = f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
	assert.ErrorIs(t, err, ErrConflict)

	released := f.hold(t, 1, "E7")
	require.NoError(t, f.reservations.ReleaseHold(f.ctx, released.ReservationID, 1))
	_, err = f.checkout.CreateCheckoutSession(f.ctx, 1, released.ReservationID, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFinalizePaidOrder_SellsSeatsAndMintsTickets(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "B1", "B2")
	sess, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
	require.NoError(t, err)

	res, err := f.checkout.FinalizePaidOrder(f.ctx, sess.OrderID)
	require.NoError(t, err)

	assert.Equal(t, model.OrderPaid, res.OrderStatus)
	require.Equal(t, 2, res.TicketCount)
	for _, tk := range res.Tickets {
		assert.True(t, strings.HasPrefix(tk.QRToken, "tkt_"))
		assert.Equal(t, model.TicketValid, tk.Status)
	}
	assert.ElementsMatch(t, f.seats("B1", "B2"), []uint64{res.Tickets[0].SeatID, res.Tickets[1].SeatID})

	st := f.statuses(t)
	assert.Equal(t, model.SeatSold, st["B1"])
	assert.Equal(t, model.SeatSold, st["B2"])
	got, err := f.reservations.GetHold(f.ctx, h.ReservationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, got.Status)

	require.Equal(t, 1, f.publisher.count())
	ev := f.publisher.events[0]
	assert.Equal(t, sess.OrderID, ev.OrderID)
	assert.Equal(t, "Metropolis", ev.MovieTitle)
	assert.Equal(t, 2, ev.TicketCount)
	assert.Equal(t, uint32(5200), ev.TotalCents)
}

func TestFinalizePaidOrder_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := f.paidOrder(t, 1, "C7", "C8")

	again, err := f.checkout.FinalizePaidOrder(f.ctx, first.OrderID)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, 1, f.publisher.count())
}

func TestFinalizePaidOrder_LapsedHoldFailsOrder(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "F1")
	sess, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	res, err := f.checkout.FinalizePaidOrder(f.ctx, sess.OrderID)
	require.NoError(t, err)

	assert.Equal(t, model.OrderFailed, res.OrderStatus)
	assert.Zero(t, res.TicketCount)
	assert.Equal(t, model.SeatAvailable, f.statuses(t)["F1"])
	assert.Zero(t, f.publisher.count())

	o, err := f.checkout.OrderByID(f.ctx, sess.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, o.Status)
}

func TestFinalizePaidOrder_PartiallyInvalidatedHoldFails(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(t *testing.T, f *fixture)
	}{
		{"showtime moved to another auditorium", func(t *testing.T, f *fixture) {
			other := f.createAuditorium(t, "Hall 2")
			_, err := f.inventory.EnsureAuditoriumSeatInventory(f.ctx, other)
			require.NoError(t, err)
			_, err = f.inventory.UpdateShowtime(f.ctx, f.showtimeID, model.ShowtimePatch{AuditoriumID: &other})
			require.NoError(t, err)
		}},
		{"one held seat no longer held", func(t *testing.T, f *fixture) {
			_, err := f.db.ExecContext(f.ctx,
				`UPDATE showtime_seat_status SET status = ?, held_by_reservation_id = NULL WHERE showtime_id = ? AND seat_id = ?`,
				model.SeatSold, f.showtimeID, f.seatIDs["D2"])
			require.NoError(t, err)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			h := f.hold(t, 1, "D1", "D2")
			sess, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
			require.NoError(t, err)

			tc.invalidate(t, f)

			res, err := f.checkout.FinalizePaidOrder(f.ctx, sess.OrderID)
			require.NoError(t, err)
			assert.Equal(t, model.OrderFailed, res.OrderStatus)
			assert.Zero(t, res.TicketCount)
			assert.Empty(t, res.Tickets)
			assert.Zero(t, f.publisher.count())

			o, err := f.checkout.OrderByID(f.ctx, sess.OrderID)
			require.NoError(t, err)
			assert.Equal(t, model.OrderFailed, o.Status)
		})
	}
}

func TestFinalizePaidOrder_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.FinalizePaidOrder(f.ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailOrder_ReleasesHold(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "G1", "G2")
	sess, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
	require.NoError(t, err)

	res, err := f.checkout.FailOrder(f.ctx, sess.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, res.OrderStatus)

	st := f.statuses(t)
	assert.Equal(t, model.SeatAvailable, st["G1"])
	assert.Equal(t, model.SeatAvailable, st["G2"])

	again, err := f.checkout.FinalizePaidOrder(f.ctx, sess.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, again.OrderStatus)
	assert.Zero(t, again.TicketCount)
}

func TestFailOrder_PaidOrderUnchanged(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "G5")

	res, err := f.checkout.FailOrder(f.ctx, paid.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, res.OrderStatus)
	assert.Equal(t, model.SeatSold, f.statuses(t)["G5"])
}

func TestConfirmOrder_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	h := f.hold(t, 1, "H5")
	sess, err := f.checkout.CreateCheckoutSession(f.ctx, 1, h.ReservationID, "")
	require.NoError(t, err)

	_, err = f.checkout.ConfirmOrder(f.ctx, sess.OrderID, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := f.checkout.ConfirmOrder(f.ctx, sess.OrderID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, res.OrderStatus)
}
