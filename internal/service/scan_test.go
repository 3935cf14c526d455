package service

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestScanTicket_ValidThenAlreadyUsed(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "E9")
	token := paid.Tickets[0].QRToken

	f.clock.Advance(2 * time.Hour)
	first, err := f.tickets.ScanTicket(f.ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ScanValid, first.Result)
	assert.Equal(t, "E9", first.SeatCode)
	assert.Equal(t, f.showtimeID, first.ShowtimeID)
	require.NotNil(t, first.UsedAt)

	f.clock.Advance(time.Minute)
	second, err := f.tickets.ScanTicket(f.ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ScanAlreadyUsed, second.Result)
	require.NotNil(t, second.UsedAt)
	assert.WithinDuration(t, *first.UsedAt, *second.UsedAt, time.Millisecond)
}

func TestScanTicket_Invalid(t *testing.T) {
	f := newFixture(t)

	res, err := f.tickets.ScanTicket(f.ctx, "tkt_doesnotexist")
	require.NoError(t, err)
	assert.Equal(t, ScanInvalid, res.Result)
	assert.Zero(t, res.TicketID)

	_, err = f.tickets.ScanTicket(f.ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestScanTicket_VoidTicketIsInvalid(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "E12")
	ticket := paid.Tickets[0]
	_, err := f.db.ExecContext(f.ctx, `UPDATE tickets SET status = ? WHERE id = ?`, model.TicketVoid, ticket.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	res, err := f.tickets.ScanTicket(f.ctx, ticket.QRToken)
	require.NoError(t, err)
	assert.Equal(t, ScanInvalid, res.Result)
	assert.Equal(t, ticket.ID, res.TicketID)
	assert.Contains(t, res.Message, model.TicketVoid)
	assert.Nil(t, res.UsedAt)

	var status string
	require.NoError(t, f.db.QueryRowContext(f.ctx, `SELECT status FROM tickets WHERE id = ?`, ticket.ID).Scan(&status))
	assert.Equal(t, model.TicketVoid, status)
}

func TestScanTicket_AfterShowtimeGraceIsInvalid(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "E10")

	// showtime ends at +4h, grace is 30 minutes
	f.clock.Advance(4*time.Hour + 30*time.Minute)
	res, err := f.tickets.ScanTicket(f.ctx, paid.Tickets[0].QRToken)
	require.NoError(t, err)
	assert.Equal(t, ScanValid, res.Result)

	other := f.paidOrder(t, 2, "E11")
	f.clock.Advance(time.Second)
	res, err = f.tickets.ScanTicket(f.ctx, other.Tickets[0].QRToken)
	require.NoError(t, err)
	assert.Equal(t, ScanInvalid, res.Result)
}

func TestScanTicket_ConcurrentSingleAdmission(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "F9")
	token := paid.Tickets[0].QRToken

	const scanners = 8
	results := make(chan string, scanners)
	var wg sync.WaitGroup
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.tickets.ScanTicket(f.ctx, token)
			if err != nil {
				t.Errorf("scan: %v", err)
				return
			}
			results <- res.Result
		}()
	}
	wg.Wait()
	close(results)

	counts := map[string]int{}
	for r := range results {
		counts[r]++
	}
	assert.Equal(t, 1, counts[ScanValid])
	assert.Equal(t, scanners-1, counts[ScanAlreadyUsed])
}

func TestListTicketsForUser(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "H8", "H9")
	f.paidOrder(t, 2, "H10")

	items, err := f.tickets.ListTicketsForUser(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, LifecycleUpcoming, it.LifecycleState)
		assert.Equal(t, "Metropolis", it.MovieTitle)
		assert.Equal(t, epoch.Add(90*time.Minute), it.EntryOpensAt.UTC())
		assert.Equal(t, epoch.Add(4*time.Hour+30*time.Minute), it.ActiveUntil.UTC())
	}

	f.clock.Advance(2 * time.Hour)
	_, err = f.tickets.ScanTicket(f.ctx, paid.Tickets[0].QRToken)
	require.NoError(t, err)

	items, err = f.tickets.ListTicketsForUser(f.ctx, 1)
	require.NoError(t, err)
	states := map[uint64]string{}
	for _, it := range items {
		states[it.ID] = it.LifecycleState
	}
	assert.Equal(t, LifecycleUsed, states[paid.Tickets[0].ID])
	assert.Equal(t, LifecycleActive, states[paid.Tickets[1].ID])
}

func TestTicketQRCode(t *testing.T) {
	f := newFixture(t)
	paid := f.paidOrder(t, 1, "D9")
	id := paid.Tickets[0].ID

	png, err := f.tickets.TicketQRCode(f.ctx, id, 1, 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = f.tickets.TicketQRCode(f.ctx, id, 2, 128)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.tickets.TicketQRCode(f.ctx, id, 1, 4096)
	assert.ErrorIs(t, err, ErrValidation)
}
