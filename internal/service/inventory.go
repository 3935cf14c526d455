package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// InventoryService provisions auditorium seats and keeps each showtime's
// seat status rows in line with its auditorium.
type InventoryService struct {
	base
	rows        int
	seatsPerRow int
}

// NewInventoryService builds an InventoryService.
func NewInventoryService(d Deps, s Settings) *InventoryService {
	if s.SeatRows <= 0 {
		s.SeatRows = DefaultSettings().SeatRows
	}
	if s.SeatsPerRow <= 0 {
		s.SeatsPerRow = DefaultSettings().SeatsPerRow
	}
	return &InventoryService{base: newBase(d), rows: s.SeatRows, seatsPerRow: s.SeatsPerRow}
}

// SyncResult reports how many status rows a sync created and removed.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Removed  int `json:"removed"`
}

// DefaultLayout describes the generated grid: rows.. seatsPerRow seats
// with aisles after the 4th and 8th seat and the screen at the top.
func DefaultLayout(rows, seatsPerRow int) model.SeatLayout {
	labels := make([]string, rows)
	for i := range labels {
		labels[i] = RowLabel(i)
	}
	return model.SeatLayout{
		Rows:           labels,
		SeatsPerRow:    seatsPerRow,
		AislesAfter:    []int{4, 8},
		ScreenPosition: "top",
	}
}

// RowLabel converts a zero-based index to an alphabetical row label like
// A, B, ..., Z, AA.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// seatTypeForRow assigns VIP to the first two rows, PREMIUM to the next
// two and STANDARD to the rest.
func seatTypeForRow(i int) string {
	switch {
	case i < 2:
		return model.SeatTypeVIP
	case i < 4:
		return model.SeatTypePremium
	default:
		return model.SeatTypeStandard
	}
}

// EnsureAuditoriumSeatInventory creates the seat map and seats of an
// auditorium if it has none. It returns the number of seats created,
// zero when the auditorium was already provisioned.
func (s *InventoryService) EnsureAuditoriumSeatInventory(ctx context.Context, auditoriumID uint64) (int, error) {
	created := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.clock()
		aud, err := s.auditoriums.GetByIDTx(ctx, tx, auditoriumID, true)
		if err != nil {
			return notFound(err, "auditorium")
		}
		if aud.SeatMapID == nil {
			layout, err := json.Marshal(DefaultLayout(s.rows, s.seatsPerRow))
			if err != nil {
				return err
			}
			m := &model.SeatMap{
				Name:       fmt.Sprintf("%s Standard Layout", aud.Name),
				LayoutJSON: string(layout),
				CreatedAt:  now,
			}
			if err := s.auditoriums.CreateSeatMapTx(ctx, tx, m); err != nil {
				return err
			}
			if err := s.auditoriums.SetSeatMapTx(ctx, tx, aud.ID, m.ID); err != nil {
				return err
			}
		}

		n, err := s.seats.CountByAuditoriumTx(ctx, tx, aud.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		seats := make([]model.Seat, 0, s.rows*s.seatsPerRow)
		for r := 0; r < s.rows; r++ {
			label := RowLabel(r)
			for num := 1; num <= s.seatsPerRow; num++ {
				seats = append(seats, model.Seat{
					AuditoriumID: aud.ID,
					SeatCode:     fmt.Sprintf("%s%d", label, num),
					RowLabel:     label,
					SeatNumber:   uint32(num),
					SeatType:     seatTypeForRow(r),
					CreatedAt:    now,
				})
			}
		}
		if err := s.seats.CreateBulkTx(ctx, tx, seats); err != nil {
			return err
		}
		created = len(seats)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.logger(ctx).Info("auditorium seats provisioned", "auditorium_id", auditoriumID, "seats", created)
	}
	return created, nil
}

// SyncShowtimeSeatStatuses makes the showtime's status rows match the
// seats of its auditorium: rows for foreign seats are deleted and missing
// seats get an AVAILABLE row. Running it twice changes nothing.
func (s *InventoryService) SyncShowtimeSeatStatuses(ctx context.Context, showtimeID uint64) (SyncResult, error) {
	var out SyncResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := s.showtimes.GetByIDTx(ctx, tx, showtimeID, true)
		if err != nil {
			return notFound(err, "showtime")
		}
		out, err = s.syncTx(ctx, tx, st)
		return err
	})
	return out, err
}

func (s *InventoryService) syncTx(ctx context.Context, tx *sql.Tx, st *model.Showtime) (SyncResult, error) {
	var out SyncResult
	seatIDs, err := s.seats.IDsByAuditoriumTx(ctx, tx, st.AuditoriumID)
	if err != nil {
		return out, err
	}
	existing, err := s.showSeats.SeatIDsByShowtimeTx(ctx, tx, st.ID)
	if err != nil {
		return out, err
	}
	want := make(map[uint64]bool, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = true
	}
	have := make(map[uint64]bool, len(existing))
	var orphans []uint64
	for _, id := range existing {
		have[id] = true
		if !want[id] {
			orphans = append(orphans, id)
		}
	}
	var missing []uint64
	for _, id := range seatIDs {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	removed, err := s.showSeats.DeleteBySeatIDsTx(ctx, tx, st.ID, orphans)
	if err != nil {
		return out, err
	}
	if err := s.showSeats.InsertAvailableTx(ctx, tx, st.ID, missing, s.clock()); err != nil {
		return out, err
	}
	out.Removed = int(removed)
	out.Inserted = len(missing)
	return out, nil
}

// UpdateShowtime applies patch to a showtime. Moving the showtime to
// another auditorium re-syncs its seat status rows in the same
// transaction.
func (s *InventoryService) UpdateShowtime(ctx context.Context, showtimeID uint64, patch model.ShowtimePatch) (*model.Showtime, error) {
	if patch.Empty() {
		return nil, newError(ErrValidation, "no fields to update")
	}
	var updated model.Showtime
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := s.showtimes.GetByIDTx(ctx, tx, showtimeID, true)
		if err != nil {
			return notFound(err, "showtime")
		}
		next, err := patch.Apply(*st)
		if err != nil {
			return newError(ErrValidation, "%s", err.Error())
		}
		if next.AuditoriumID != st.AuditoriumID {
			if _, err := s.auditoriums.GetByIDTx(ctx, tx, next.AuditoriumID, false); err != nil {
				return notFound(err, "auditorium")
			}
		}
		next.UpdatedAt = s.clock()
		if err := s.showtimes.UpdateTx(ctx, tx, next); err != nil {
			return err
		}
		if next.AuditoriumID != st.AuditoriumID {
			if _, err := s.syncTx(ctx, tx, &next); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ShowtimeSeatMap returns every seat of a showtime with its current
// status. Overdue holds are expired first so the map is not stale.
func (s *InventoryService) ShowtimeSeatMap(ctx context.Context, showtimeID uint64) ([]model.SeatWithStatus, error) {
	var out []model.SeatWithStatus
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.showtimes.GetByIDTx(ctx, tx, showtimeID, false); err != nil {
			return notFound(err, "showtime")
		}
		if _, err := s.expireOverdueTx(ctx, tx, s.clock()); err != nil {
			return err
		}
		var err error
		out, err = s.showSeats.ListWithSeatsTx(ctx, tx, showtimeID)
		return err
	})
	return out, err
}

// AuditoriumLayout is the immutable seat layout of an auditorium.
type AuditoriumLayout struct {
	AuditoriumID uint64           `json:"auditorium_id"`
	Layout       model.SeatLayout `json:"layout"`
	Seats        []model.Seat     `json:"seats"`
}

// AuditoriumSeats returns the layout descriptor and seats of a
// provisioned auditorium.
func (s *InventoryService) AuditoriumSeats(ctx context.Context, auditoriumID uint64) (*AuditoriumLayout, error) {
	m, err := s.auditoriums.GetSeatMapByAuditorium(ctx, auditoriumID)
	if err != nil {
		return nil, notFound(err, "auditorium seat map")
	}
	var layout model.SeatLayout
	if err := json.Unmarshal([]byte(m.LayoutJSON), &layout); err != nil {
		return nil, fmt.Errorf("decode seat map %d: %w", m.ID, err)
	}
	seats, err := s.seats.ListByAuditorium(ctx, auditoriumID)
	if err != nil {
		return nil, err
	}
	return &AuditoriumLayout{AuditoriumID: auditoriumID, Layout: layout, Seats: seats}, nil
}
