package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// ReservationService manages seat holds. A hold moves its seats from
// AVAILABLE to HELD and ends as EXPIRED, CANCELED or COMPLETED.
type ReservationService struct {
	base
	holdMinutes int
}

// NewReservationService builds a ReservationService.
func NewReservationService(d Deps, s Settings) *ReservationService {
	return &ReservationService{base: newBase(d), holdMinutes: s.HoldMinutes}
}

// HoldRequest asks for a hold on SeatIDs. HoldMinutes overrides the
// configured hold duration when set; zero yields a hold that is already
// due for expiry.
type HoldRequest struct {
	UserID      uint64
	ShowtimeID  uint64
	SeatIDs     []uint64
	HoldMinutes *int
}

// HoldView is the client facing state of a reservation.
type HoldView struct {
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	ShowtimeID    uint64    `json:"showtime_id"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	SeatIDs       []uint64  `json:"seat_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

func holdView(r *model.Reservation, seatIDs []uint64) *HoldView {
	if seatIDs == nil {
		seatIDs = []uint64{}
	}
	return &HoldView{
		ReservationID: r.ID,
		UserID:        r.UserID,
		ShowtimeID:    r.ShowtimeID,
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
		SeatIDs:       seatIDs,
		CreatedAt:     r.CreatedAt,
	}
}

// normalizeSeatIDs drops zero ids and duplicates and sorts the rest so
// locks are always taken in ascending order.
func normalizeSeatIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExpireOverdueHolds expires every overdue ACTIVE hold and frees its
// seats. It is what the background sweeper runs.
func (s *ReservationService) ExpireOverdueHolds(ctx context.Context) (int, error) {
	var n int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = s.expireOverdueTx(ctx, tx, s.clock())
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.HoldsExpired(n)
	return n, nil
}

// CreateHold places an ACTIVE hold on every requested seat or on none.
// Seats unknown to the showtime yield a *MissingSeatsError and seats that
// are not AVAILABLE a *SeatConflictError.
func (s *ReservationService) CreateHold(ctx context.Context, req HoldRequest) (*HoldView, error) {
	s.metrics.ReservationAttempt()

	seatIDs := normalizeSeatIDs(req.SeatIDs)
	if len(seatIDs) == 0 {
		return nil, newError(ErrValidation, "seat_ids must contain at least one positive id")
	}
	minutes := s.holdMinutes
	if req.HoldMinutes != nil {
		minutes = *req.HoldMinutes
	}
	if minutes < 0 {
		return nil, newError(ErrValidation, "hold minutes must not be negative")
	}

	var view *HoldView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.clock()
		if _, err := s.showtimes.GetByIDTx(ctx, tx, req.ShowtimeID, false); err != nil {
			return notFound(err, "showtime")
		}
		if _, err := s.expireOverdueTx(ctx, tx, now); err != nil {
			return err
		}

		rows, err := s.showSeats.LockBySeatIDsTx(ctx, tx, req.ShowtimeID, seatIDs)
		if err != nil {
			return err
		}
		found := make(map[uint64]bool, len(rows))
		var unavailable []uint64
		for _, r := range rows {
			found[r.SeatID] = true
			if r.Status != model.SeatAvailable {
				unavailable = append(unavailable, r.SeatID)
			}
		}
		var missing []uint64
		for _, id := range seatIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return &MissingSeatsError{SeatIDs: missing}
		}
		if len(unavailable) > 0 {
			return &SeatConflictError{SeatIDs: unavailable}
		}

		res := &model.Reservation{
			UserID:     req.UserID,
			ShowtimeID: req.ShowtimeID,
			Status:     model.ReservationActive,
			ExpiresAt:  now.Add(time.Duration(minutes) * time.Minute),
			CreatedAt:  now,
		}
		if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		if err := s.reservations.AddSeatsTx(ctx, tx, res.ID, seatIDs); err != nil {
			return err
		}
		held, err := s.showSeats.HoldTx(ctx, tx, req.ShowtimeID, seatIDs, res.ID, now)
		if err != nil {
			return err
		}
		if held != int64(len(seatIDs)) {
			// another writer flipped a row between the lock and the update
			return &SeatConflictError{SeatIDs: seatIDs}
		}
		view = holdView(res, seatIDs)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ReservationConflict()
		}
		return nil, err
	}
	s.metrics.ReservationSuccess()
	s.logger(ctx).Info("seats held",
		"reservation_id", view.ReservationID,
		"showtime_id", view.ShowtimeID,
		"seats", len(view.SeatIDs),
		"expires_at", view.ExpiresAt)
	return view, nil
}

// ReleaseHold cancels the user's hold and frees exactly its seats.
// Releasing a hold that is no longer ACTIVE is a no-op.
func (s *ReservationService) ReleaseHold(ctx context.Context, reservationID, userID uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.clock()
		if _, err := s.expireOverdueTx(ctx, tx, now); err != nil {
			return err
		}
		res, err := s.reservations.GetForUserTx(ctx, tx, reservationID, userID)
		if err != nil {
			return notFound(err, "reservation")
		}
		return s.releaseTx(ctx, tx, res, now)
	})
}

// releaseTx moves an ACTIVE reservation to CANCELED and frees the seats
// it holds. Seats held by other reservations are never touched.
func (b *base) releaseTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, now time.Time) error {
	if res.Status != model.ReservationActive {
		return nil
	}
	if _, err := b.reservations.TransitionTx(ctx, tx, []uint64{res.ID}, model.ReservationActive, model.ReservationCanceled); err != nil {
		return err
	}
	if _, err := b.showSeats.ReleaseHeldByTx(ctx, tx, []uint64{res.ID}, now); err != nil {
		return err
	}
	res.Status = model.ReservationCanceled
	return nil
}

// GetHold returns one of the user's reservations.
func (s *ReservationService) GetHold(ctx context.Context, reservationID, userID uint64) (*HoldView, error) {
	var view *HoldView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.expireOverdueTx(ctx, tx, s.clock()); err != nil {
			return err
		}
		res, err := s.reservations.GetForUserTx(ctx, tx, reservationID, userID)
		if err != nil {
			return notFound(err, "reservation")
		}
		seatIDs, err := s.reservations.SeatIDsTx(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		view = holdView(res, seatIDs)
		return nil
	})
	return view, err
}

// GetActiveHold returns the user's ACTIVE hold for a showtime, or nil
// when there is none.
func (s *ReservationService) GetActiveHold(ctx context.Context, userID, showtimeID uint64) (*HoldView, error) {
	var view *HoldView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.expireOverdueTx(ctx, tx, s.clock()); err != nil {
			return err
		}
		res, err := s.reservations.ActiveForUserShowtimeTx(ctx, tx, userID, showtimeID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		seatIDs, err := s.reservations.SeatIDsTx(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		view = holdView(res, seatIDs)
		return nil
	})
	return view, err
}
