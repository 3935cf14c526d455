// Package service implements the seat reservation core: seat inventory,
// holds, checkout and finalize, the payment webhook gate and ticket
// scanning. Every operation runs in a single database transaction and
// takes row locks in a fixed order: reservations, then orders, then seat
// status rows by ascending seat id, then tickets.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/metrics"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Deps are the collaborators shared by every service. Logger, Metrics and
// Now may be left nil.
type Deps struct {
	DB      *sql.DB
	Dialect database.Dialect
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Settings are the tunables read from configuration at start-up.
type Settings struct {
	HoldMinutes      int
	SeatRows         int
	SeatsPerRow      int
	Currency         string
	DefaultProvider  string
	CheckoutURLBase  string
	EntryOpenMinutes int
	ScanGraceMinutes int
	WebhookTTL       time.Duration
	DedupFailOpen    bool
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		HoldMinutes:      8,
		SeatRows:         8,
		SeatsPerRow:      12,
		Currency:         "USD",
		DefaultProvider:  "mock",
		CheckoutURLBase:  "/checkout/processing",
		EntryOpenMinutes: 30,
		ScanGraceMinutes: 30,
		WebhookTTL:       24 * time.Hour,
		DedupFailOpen:    true,
	}
}

type base struct {
	db           *sql.DB
	auditoriums  *repository.AuditoriumRepo
	seats        *repository.SeatRepo
	showtimes    *repository.ShowtimeRepo
	showSeats    *repository.ShowSeatRepo
	reservations *repository.ReservationRepo
	orders       *repository.OrderRepo
	tickets      *repository.TicketRepo
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func newBase(d Deps) base {
	if d.Dialect == "" {
		d.Dialect = database.MySQL
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return base{
		db:           d.DB,
		auditoriums:  repository.NewAuditoriumRepo(d.DB, d.Dialect),
		seats:        repository.NewSeatRepo(d.DB),
		showtimes:    repository.NewShowtimeRepo(d.DB, d.Dialect),
		showSeats:    repository.NewShowSeatRepo(d.DB, d.Dialect),
		reservations: repository.NewReservationRepo(d.DB, d.Dialect),
		orders:       repository.NewOrderRepo(d.DB, d.Dialect),
		tickets:      repository.NewTicketRepo(d.DB, d.Dialect),
		log:          d.Logger,
		metrics:      d.Metrics,
		now:          d.Now,
	}
}

// clock returns the current time in UTC at the precision the database
// stores.
func (b *base) clock() time.Time {
	return b.now().UTC().Truncate(time.Microsecond)
}

// withTx runs fn in a transaction, committing when it returns nil and
// rolling back otherwise.
func (b *base) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// logger returns the request scoped logger when one is attached to ctx.
func (b *base) logger(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, b.log)
}

// expireOverdueTx expires every ACTIVE reservation past its deadline and
// returns its seats to AVAILABLE. It runs inside the caller's transaction
// before any availability decision.
func (b *base) expireOverdueTx(ctx context.Context, tx *sql.Tx, now time.Time) (int, error) {
	ids, err := b.reservations.LockOverdueActiveTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := b.reservations.TransitionTx(ctx, tx, ids, model.ReservationActive, model.ReservationExpired); err != nil {
		return 0, err
	}
	if _, err := b.showSeats.ReleaseHeldByTx(ctx, tx, ids, now); err != nil {
		return 0, err
	}
	return len(ids), nil
}
