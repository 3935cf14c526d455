package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

var epoch = time.Date(2030, 1, 1, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.TicketsIssuedEvent
}

func (p *recordingPublisher) PublishTicketsIssued(_ context.Context, ev queue.TicketsIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	ctx          context.Context
	db           *sql.DB
	clock        *fakeClock
	deps         Deps
	settings     Settings
	publisher    *recordingPublisher
	inventory    *InventoryService
	reservations *ReservationService
	checkout     *CheckoutService
	tickets      *TicketService

	auditoriumID uint64
	showtimeID   uint64
	seatIDs      map[string]uint64
}

// newFixture opens a private in-memory database with one provisioned
// auditorium and one showtime starting two hours after the fake clock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newFixtureOn(t, db, database.SQLite)
}

// newFixtureOn seeds an already migrated database.
func newFixtureOn(t *testing.T, db *sql.DB, dialect database.Dialect) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{now: epoch}
	f := &fixture{
		ctx:       ctx,
		db:        db,
		clock:     clock,
		settings:  DefaultSettings(),
		publisher: &recordingPublisher{},
		deps:      Deps{DB: db, Dialect: dialect, Logger: logger.Discard(), Now: clock.Now},
	}
	f.inventory = NewInventoryService(f.deps, f.settings)
	f.reservations = NewReservationService(f.deps, f.settings)
	f.checkout = NewCheckoutService(f.deps, f.settings, f.publisher)
	f.tickets = NewTicketService(f.deps, f.settings)

	f.auditoriumID = f.createAuditorium(t, "Hall 1")
	_, err := f.inventory.EnsureAuditoriumSeatInventory(ctx, f.auditoriumID)
	require.NoError(t, err)

	st := &model.Showtime{
		AuditoriumID: f.auditoriumID,
		MovieTitle:   "Metropolis",
		StartsAt:     epoch.Add(2 * time.Hour),
		EndsAt:       epoch.Add(4 * time.Hour),
		Status:       model.ShowtimeScheduled,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	require.NoError(t, repository.NewShowtimeRepo(db, dialect).Create(ctx, st))
	f.showtimeID = st.ID
	_, err = f.inventory.SyncShowtimeSeatStatuses(ctx, f.showtimeID)
	require.NoError(t, err)

	seats, err := repository.NewSeatRepo(db).ListByAuditorium(ctx, f.auditoriumID)
	require.NoError(t, err)
	f.seatIDs = make(map[string]uint64, len(seats))
	for _, s := range seats {
		f.seatIDs[s.SeatCode] = s.ID
	}
	return f
}

func (f *fixture) createAuditorium(t *testing.T, name string) uint64 {
	t.Helper()
	a := &model.Auditorium{Name: name, CreatedAt: epoch}
	require.NoError(t, repository.NewAuditoriumRepo(f.db, f.deps.Dialect).Create(f.ctx, a))
	return a.ID
}

func (f *fixture) seats(codes ...string) []uint64 {
	out := make([]uint64, 0, len(codes))
	for _, c := range codes {
		id, ok := f.seatIDs[c]
		if !ok {
			panic("unknown seat " + c)
		}
		out = append(out, id)
	}
	return out
}

// statuses returns the current status of every seat of the showtime keyed
// by seat code.
func (f *fixture) statuses(t *testing.T) map[string]string {
	t.Helper()
	seats, err := f.inventory.ShowtimeSeatMap(f.ctx, f.showtimeID)
	require.NoError(t, err)
	out := make(map[string]string, len(seats))
	for _, s := range seats {
		out[s.SeatCode] = s.Status
	}
	return out
}

func (f *fixture) hold(t *testing.T, userID uint64, codes ...string) *HoldView {
	t.Helper()
	v, err := f.reservations.CreateHold(f.ctx, HoldRequest{UserID: userID, ShowtimeID: f.showtimeID, SeatIDs: f.seats(codes...)})
	require.NoError(t, err)
	return v
}

// paidOrder holds codes for userID, opens a checkout session and
// finalizes it.
func (f *fixture) paidOrder(t *testing.T, userID uint64, codes ...string) *FinalizeResult {
	t.Helper()
	h := f.hold(t, userID, codes...)
	sess, err := f.checkout.CreateCheckoutSession(f.ctx, userID, h.ReservationID, "")
	require.NoError(t, err)
	res, err := f.checkout.FinalizePaidOrder(f.ctx, sess.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderPaid, res.OrderStatus)
	return res
}
