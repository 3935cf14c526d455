package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// TicketsPublisher receives an event for every order that becomes PAID.
type TicketsPublisher interface {
	PublishTicketsIssued(ctx context.Context, ev queue.TicketsIssuedEvent) error
}

// CheckoutService turns holds into orders and paid orders into tickets.
type CheckoutService struct {
	base
	currency        string
	defaultProvider string
	urlBase         string
	publisher       TicketsPublisher
}

// NewCheckoutService builds a CheckoutService. publisher may be nil.
func NewCheckoutService(d Deps, s Settings, publisher TicketsPublisher) *CheckoutService {
	def := DefaultSettings()
	if s.Currency == "" {
		s.Currency = def.Currency
	}
	if s.DefaultProvider == "" {
		s.DefaultProvider = def.DefaultProvider
	}
	if s.CheckoutURLBase == "" {
		s.CheckoutURLBase = def.CheckoutURLBase
	}
	return &CheckoutService{
		base:            newBase(d),
		currency:        strings.ToUpper(s.Currency),
		defaultProvider: s.DefaultProvider,
		urlBase:         s.CheckoutURLBase,
		publisher:       publisher,
	}
}

// CheckoutSession is the payment session handed to the client.
type CheckoutSession struct {
	OrderID           uint64    `json:"order_id"`
	ReservationID     uint64    `json:"reservation_id"`
	Provider          string    `json:"provider"`
	ProviderSessionID string    `json:"provider_session_id"`
	Status            string    `json:"status"`
	TotalCents        uint32    `json:"total_cents"`
	Currency          string    `json:"currency"`
	CheckoutURL       string    `json:"checkout_url"`
	CreatedAt         time.Time `json:"created_at"`
}

// TicketView is a minted ticket as returned after finalize.
type TicketView struct {
	ID      uint64 `json:"id"`
	SeatID  uint64 `json:"seat_id"`
	QRToken string `json:"qr_token"`
	Status  string `json:"status"`
}

// FinalizeResult is the state of an order after a finalize attempt.
type FinalizeResult struct {
	OrderID     uint64       `json:"order_id"`
	OrderStatus string       `json:"order_status"`
	TicketCount int          `json:"ticket_count"`
	Tickets     []TicketView `json:"tickets"`
}

func (s *CheckoutService) session(o *model.Order) *CheckoutSession {
	sid := ""
	if o.ProviderSessionID != nil {
		sid = *o.ProviderSessionID
	}
	q := url.Values{}
	q.Set("order_id", fmt.Sprint(o.ID))
	q.Set("session_id", sid)
	return &CheckoutSession{
		OrderID:           o.ID,
		ReservationID:     o.ReservationID,
		Provider:          o.Provider,
		ProviderSessionID: sid,
		Status:            o.Status,
		TotalCents:        o.TotalCents,
		Currency:          o.Currency,
		CheckoutURL:       s.urlBase + "?" + q.Encode(),
		CreatedAt:         o.CreatedAt,
	}
}

// CreateCheckoutSession creates the PENDING order for an ACTIVE hold, or
// returns the order already created for it.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID, reservationID uint64, provider string) (*CheckoutSession, error) {
	s.metrics.CheckoutAttempt()
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = s.defaultProvider
	}

	var out *CheckoutSession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.clock()
		if _, err := s.expireOverdueTx(ctx, tx, now); err != nil {
			return err
		}
		res, err := s.reservations.GetForUserTx(ctx, tx, reservationID, userID)
		if err != nil {
			return notFound(err, "reservation")
		}
		if res.Status != model.ReservationActive {
			return newError(ErrConflict, "reservation is not active")
		}
		if !res.ExpiresAt.After(now) {
			return newError(ErrConflict, "reservation has expired")
		}

		existing, err := s.orders.GetByReservationTx(ctx, tx, res.ID)
		if err == nil {
			out = s.session(existing)
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		seats, err := s.reservations.SeatTypesTx(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		if len(seats) == 0 {
			return newError(ErrValidation, "reservation has no seats")
		}
		var total uint32
		for _, st := range seats {
			total += SeatPriceCents(st.SeatType)
		}

		sid := newToken("cs_")
		o := &model.Order{
			UserID:            userID,
			ShowtimeID:        res.ShowtimeID,
			ReservationID:     res.ID,
			Status:            model.OrderPending,
			TotalCents:        total,
			Currency:          s.currency,
			Provider:          provider,
			ProviderSessionID: &sid,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.orders.CreateTx(ctx, tx, o); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(ErrConflict, "an order already exists for this reservation")
			}
			return err
		}
		out = s.session(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CheckoutSuccess()
	return out, nil
}

// OrderForUser returns an order owned by userID.
func (s *CheckoutService) OrderForUser(ctx context.Context, orderID, userID uint64) (*model.Order, error) {
	var o *model.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		o, err = s.orders.GetForUserTx(ctx, tx, orderID, userID)
		return notFound(err, "order")
	})
	return o, err
}

// OrderByID returns an order regardless of owner.
func (s *CheckoutService) OrderByID(ctx context.Context, orderID uint64) (*model.Order, error) {
	var o *model.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		o, err = s.orders.GetByIDTx(ctx, tx, orderID, false)
		return notFound(err, "order")
	})
	return o, err
}

// OrderByProviderSession returns the order bound to a provider session.
func (s *CheckoutService) OrderByProviderSession(ctx context.Context, sessionID string) (*model.Order, error) {
	var o *model.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		o, err = s.orders.GetByProviderSessionTx(ctx, tx, sessionID)
		return notFound(err, "order")
	})
	return o, err
}

// ConfirmOrder finalizes one of the user's orders.
func (s *CheckoutService) ConfirmOrder(ctx context.Context, orderID, userID uint64) (*FinalizeResult, error) {
	if _, err := s.OrderForUser(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.FinalizePaidOrder(ctx, orderID)
}

// FinalizePaidOrder settles a paid order. If the hold is still ACTIVE and
// holds every seat, the seats become SOLD, the hold COMPLETED, the order
// PAID and each seat gets a ticket. Otherwise the order becomes FAILED.
// An order already PAID or FAILED is returned as is, so calling this any
// number of times has the effect of calling it once.
func (s *CheckoutService) FinalizePaidOrder(ctx context.Context, orderID uint64) (*FinalizeResult, error) {
	var (
		result     *FinalizeResult
		transition string
		event      *queue.TicketsIssuedEvent
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, transition, event, err = s.finalizeTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if transition != "" {
		s.metrics.Finalized(transition)
		s.logger(ctx).Info("order finalized", "order_id", orderID, "status", transition, "tickets", result.TicketCount)
	}
	if event != nil && s.publisher != nil {
		if err := s.publisher.PublishTicketsIssued(ctx, *event); err != nil {
			s.logger(ctx).Warn("publish tickets issued failed", "order_id", orderID, "error", err)
		}
	}
	return result, nil
}

func (s *CheckoutService) finalizeTx(ctx context.Context, tx *sql.Tx, orderID uint64) (*FinalizeResult, string, *queue.TicketsIssuedEvent, error) {
	now := s.clock()
	if _, err := s.expireOverdueTx(ctx, tx, now); err != nil {
		return nil, "", nil, err
	}
	peek, err := s.orders.GetByIDTx(ctx, tx, orderID, false)
	if err != nil {
		return nil, "", nil, notFound(err, "order")
	}
	res, err := s.reservations.GetByIDTx(ctx, tx, peek.ReservationID)
	if err != nil {
		return nil, "", nil, notFound(err, "order reservation")
	}
	order, err := s.orders.GetByIDTx(ctx, tx, orderID, true)
	if err != nil {
		return nil, "", nil, notFound(err, "order")
	}
	if order.Terminal() {
		r, err := s.snapshotTx(ctx, tx, order.ID, order.Status)
		return r, "", nil, err
	}

	fail := func() (*FinalizeResult, string, *queue.TicketsIssuedEvent, error) {
		if err := s.orders.SetStatusTx(ctx, tx, order.ID, model.OrderFailed, now); err != nil {
			return nil, "", nil, err
		}
		r, err := s.snapshotTx(ctx, tx, order.ID, model.OrderFailed)
		return r, model.OrderFailed, nil, err
	}

	if res.Status != model.ReservationActive {
		return fail()
	}
	seatIDs, err := s.reservations.SeatIDsTx(ctx, tx, res.ID)
	if err != nil {
		return nil, "", nil, err
	}
	if len(seatIDs) == 0 {
		return fail()
	}
	rows, err := s.showSeats.LockBySeatIDsTx(ctx, tx, res.ShowtimeID, seatIDs)
	if err != nil {
		return nil, "", nil, err
	}
	if len(rows) != len(seatIDs) {
		return fail()
	}
	for _, r := range rows {
		if !r.HeldBy(res.ID) {
			return fail()
		}
	}

	sold, err := s.showSeats.SellTx(ctx, tx, res.ShowtimeID, seatIDs, res.ID, now)
	if err != nil {
		return nil, "", nil, err
	}
	if sold != int64(len(seatIDs)) {
		return nil, "", nil, fmt.Errorf("finalize order %d: sold %d of %d seats", order.ID, sold, len(seatIDs))
	}
	if _, err := s.reservations.TransitionTx(ctx, tx, []uint64{res.ID}, model.ReservationActive, model.ReservationCompleted); err != nil {
		return nil, "", nil, err
	}
	if err := s.orders.SetStatusTx(ctx, tx, order.ID, model.OrderPaid, now); err != nil {
		return nil, "", nil, err
	}

	have, err := s.tickets.SeatIDsByOrderTx(ctx, tx, order.ID)
	if err != nil {
		return nil, "", nil, err
	}
	var mint []model.Ticket
	for _, id := range seatIDs {
		if have[id] {
			continue
		}
		mint = append(mint, model.Ticket{
			OrderID:   order.ID,
			SeatID:    id,
			QRToken:   newToken("tkt_"),
			Status:    model.TicketValid,
			CreatedAt: now,
		})
	}
	if err := s.tickets.CreateBulkTx(ctx, tx, mint); err != nil {
		return nil, "", nil, err
	}

	result, err := s.snapshotTx(ctx, tx, order.ID, model.OrderPaid)
	if err != nil {
		return nil, "", nil, err
	}
	ev := queue.TicketsIssuedEvent{
		OrderID:       order.ID,
		ReservationID: res.ID,
		UserID:        order.UserID,
		ShowtimeID:    order.ShowtimeID,
		SeatIDs:       seatIDs,
		TicketCount:   result.TicketCount,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		PaidAt:        now.Format(time.RFC3339),
	}
	if st, err := s.showtimes.GetByIDTx(ctx, tx, order.ShowtimeID, false); err == nil {
		ev.MovieTitle = st.MovieTitle
		ev.StartsAt = st.StartsAt.Format(time.RFC3339)
	}
	return result, model.OrderPaid, &ev, nil
}

// FailOrder marks a PENDING order FAILED and releases its hold. It is
// used when the provider reports the checkout session expired. Orders
// already PAID or FAILED are returned unchanged.
func (s *CheckoutService) FailOrder(ctx context.Context, orderID uint64) (*FinalizeResult, error) {
	var (
		result *FinalizeResult
		failed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.clock()
		if _, err := s.expireOverdueTx(ctx, tx, now); err != nil {
			return err
		}
		peek, err := s.orders.GetByIDTx(ctx, tx, orderID, false)
		if err != nil {
			return notFound(err, "order")
		}
		res, err := s.reservations.GetByIDTx(ctx, tx, peek.ReservationID)
		if err != nil {
			return notFound(err, "order reservation")
		}
		order, err := s.orders.GetByIDTx(ctx, tx, orderID, true)
		if err != nil {
			return notFound(err, "order")
		}
		if order.Terminal() {
			result, err = s.snapshotTx(ctx, tx, order.ID, order.Status)
			return err
		}
		if err := s.releaseTx(ctx, tx, res, now); err != nil {
			return err
		}
		if err := s.orders.SetStatusTx(ctx, tx, order.ID, model.OrderFailed, now); err != nil {
			return err
		}
		failed = true
		result, err = s.snapshotTx(ctx, tx, order.ID, model.OrderFailed)
		return err
	})
	if err != nil {
		return nil, err
	}
	if failed {
		s.metrics.Finalized(model.OrderFailed)
		s.logger(ctx).Info("order failed", "order_id", orderID)
	}
	return result, nil
}

func (s *CheckoutService) snapshotTx(ctx context.Context, tx *sql.Tx, orderID uint64, status string) (*FinalizeResult, error) {
	tickets, err := s.tickets.ListByOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	views := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, TicketView{ID: t.ID, SeatID: t.SeatID, QRToken: t.QRToken, Status: t.Status})
	}
	return &FinalizeResult{
		OrderID:     orderID,
		OrderStatus: status,
		TicketCount: len(views),
		Tickets:     views,
	}, nil
}
