package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestNormalizeSeatIDs(t *testing.T) {
	assert.Equal(t, []uint64{1, 3, 7}, normalizeSeatIDs([]uint64{7, 0, 3, 1, 3, 7}))
	assert.Empty(t, normalizeSeatIDs([]uint64{0, 0}))
}

func TestCreateHold(t *testing.T) {
	f := newFixture(t)

	v := f.hold(t, 1, "E2", "E1")

	assert.Equal(t, model.ReservationActive, v.Status)
	assert.Equal(t, f.seats("E1", "E2"), v.SeatIDs)
	assert.Equal(t, epoch.Add(8*time.Minute), v.ExpiresAt.UTC())
	st := f.statuses(t)
	assert.Equal(t, model.SeatHeld, st["E1"])
	assert.Equal(t, model.SeatHeld, st["E2"])
	assert.Equal(t, model.SeatAvailable, st["E3"])
}

func TestCreateHold_ConflictIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.hold(t, 1, "E2")

	_, err := f.reservations.CreateHold(f.ctx, HoldRequest{UserID: 2, ShowtimeID: f.showtimeID, SeatIDs: f.seats("E1", "E2", "E3")})

	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, f.seats("E2"), conflict.SeatIDs)
	st := f.statuses(t)
	assert.Equal(t, model.SeatAvailable, st["E1"])
	assert.Equal(t, model.SeatAvailable, st["E3"])

	active, err := f.reservations.GetActiveHold(f.ctx, 2, f.showtimeID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCreateHold_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.reservations.CreateHold(f.ctx, HoldRequest{UserID: 1, ShowtimeID: f.showtimeID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.reservations.CreateHold(f.ctx, HoldRequest{UserID: 1, ShowtimeID: 9999, SeatIDs: f.seats("A1")})
	assert.ErrorIs(t, err, ErrNotFound)

	neg := -1
	_, err = f.reservations.CreateHold(f.ctx, HoldRequest{UserID: 1, ShowtimeID: f.showtimeID, SeatIDs: f.seats("A1"), HoldMinutes: &neg})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateHold_MissingSeats(t *testing.T) {
	f := newFixture(t)

	_, err := f.reservations.CreateHold(f.ctx, HoldRequest{UserID: 1, ShowtimeID: f.showtimeID, SeatIDs: []uint64{f.seatIDs["A1"], 99999}})

	var missing *MissingSeatsError
	require.ErrorAs(t, err, &missing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []uint64{99999}, missing.SeatIDs)
	assert.Equal(t, model.SeatAvailable, f.statuses(t)["A1"])
}

func TestCreateHold_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	seat := f.seats("F6")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := f.reservations.CreateHold(f.ctx, HoldRequest{UserID: user, ShowtimeID: f.showtimeID, SeatIDs: seat})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)
}

func TestExpireOverdueHolds(t *testing.T) {
	f := newFixture(t)
	v := f.hold(t, 1, "A1", "A2")

	f.clock.Advance(7 * time.Minute)
	n, err := f.reservations.ExpireOverdueHolds(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Minute)
	n, err = f.reservations.ExpireOverdueHolds(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.reservations.GetHold(f.ctx, v.ReservationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, got.Status)
	st := f.statuses(t)
	assert.Equal(t, model.SeatAvailable, st["A1"])
	assert.Equal(t, model.SeatAvailable, st["A2"])
}

func TestCreateHold_ExpiresOverdueHoldsFirst(t *testing.T) {
	f := newFixture(t)
	first := f.hold(t, 1, "B3")

	f.clock.Advance(9 * time.Minute)
	second := f.hold(t, 2, "B3")

	got, err := f.reservations.GetHold(f.ctx, first.ReservationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, got.Status)
	assert.Equal(t, model.ReservationActive, second.Status)
}

func TestCreateHold_ZeroMinutesIsImmediatelyDue(t *testing.T) {
	f := newFixture(t)
	zero := 0

	v, err := f.reservations.CreateHold(f.ctx, HoldRequest{UserID: 1, ShowtimeID: f.showtimeID, SeatIDs: f.seats("C4"), HoldMinutes: &zero})
	require.NoError(t, err)

	got, err := f.reservations.GetHold(f.ctx, v.ReservationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, got.Status)
	assert.Equal(t, model.SeatAvailable, f.statuses(t)["C4"])
}

func TestReleaseHold_OnlyFreesOwnSeats(t *testing.T) {
	f := newFixture(t)
	mine := f.hold(t, 1, "D1", "D2")
	theirs := f.hold(t, 2, "D3")

	require.NoError(t, f.reservations.ReleaseHold(f.ctx, mine.ReservationID, 1))

	st := f.statuses(t)
	assert.Equal(t, model.SeatAvailable, st["D1"])
	assert.Equal(t, model.SeatAvailable, st["D2"])
	assert.Equal(t, model.SeatHeld, st["D3"])

	got, err := f.reservations.GetHold(f.ctx, mine.ReservationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCanceled, got.Status)
	other, err := f.reservations.GetHold(f.ctx, theirs.ReservationID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, other.Status)

	// releasing again is a no-op
	require.NoError(t, f.reservations.ReleaseHold(f.ctx, mine.ReservationID, 1))
}

func TestReleaseHold_OtherUsersHoldIsNotFound(t *testing.T) {
	f := newFixture(t)
	v := f.hold(t, 1, "G7")

	err := f.reservations.ReleaseHold(f.ctx, v.ReservationID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, model.SeatHeld, f.statuses(t)["G7"])
}

func TestGetActiveHold(t *testing.T) {
	f := newFixture(t)

	none, err := f.reservations.GetActiveHold(f.ctx, 1, f.showtimeID)
	require.NoError(t, err)
	assert.Nil(t, none)

	v := f.hold(t, 1, "H1")
	got, err := f.reservations.GetActiveHold(f.ctx, 1, f.showtimeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v.ReservationID, got.ReservationID)
	assert.Equal(t, f.seats("H1"), got.SeatIDs)
}
