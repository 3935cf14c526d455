package repository // repository for showtime seat status persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ShowSeatRepo encapsulates database operations for showtime_seat_status.
// Every status transition goes through a guarded UPDATE whose WHERE
// clause restates the expected current state, so the affected row count
// tells the caller whether the transition happened for every seat.
type ShowSeatRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB, dialect database.Dialect) *ShowSeatRepo {
	return &ShowSeatRepo{db: db, dialect: dialect}
}

// SeatIDsByShowtimeTx returns the seat ids that already have a status row
// for the showtime.
func (r *ShowSeatRepo) SeatIDsByShowtimeTx(ctx context.Context, tx *sql.Tx, showtimeID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM showtime_seat_status WHERE showtime_id = ? ORDER BY seat_id`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertAvailableTx creates AVAILABLE rows for the given seats in a single
// multi-row statement.
func (r *ShowSeatRepo) InsertAvailableTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, now time.Time) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO showtime_seat_status (showtime_id, seat_id, status, held_by_reservation_id, version, updated_at) VALUES `
	args := make([]interface{}, 0, len(seatIDs)*4)
	for i, id := range seatIDs {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?, NULL, 0, ?)"
		args = append(args, showtimeID, id, model.SeatAvailable, now)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return translate(err)
}

// DeleteBySeatIDsTx removes the status rows of the given seats.
func (r *ShowSeatRepo) DeleteBySeatIDsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM showtime_seat_status WHERE showtime_id = ? AND seat_id IN (`+placeholders(len(seatIDs))+`)`,
		idArgs(seatIDs, showtimeID)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LockBySeatIDsTx locks the status rows of the given seats in ascending
// seat id order and returns them. Seats without a row are simply absent
// from the result.
func (r *ShowSeatRepo) LockBySeatIDsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]model.ShowtimeSeatStatus, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, showtime_id, seat_id, status, held_by_reservation_id, version, updated_at
	            FROM showtime_seat_status
	           WHERE showtime_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)
	           ORDER BY seat_id` + r.dialect.ForUpdate()
	rows, err := tx.QueryContext(ctx, query, idArgs(seatIDs, showtimeID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ShowtimeSeatStatus
	for rows.Next() {
		var (
			s      model.ShowtimeSeatStatus
			holder sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.SeatID, &s.Status, &holder, &s.Version, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if holder.Valid {
			v := uint64(holder.Int64)
			s.HeldByReservationID = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// HoldTx flips AVAILABLE rows to HELD for reservationID. Rows in any other
// state are left alone; the returned count lets the caller detect that.
func (r *ShowSeatRepo) HoldTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, reservationID uint64, now time.Time) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE showtime_seat_status
		    SET status = ?, held_by_reservation_id = ?, version = version + 1, updated_at = ?
		  WHERE showtime_id = ? AND status = ? AND seat_id IN (`+placeholders(len(seatIDs))+`)`,
		idArgs(seatIDs, model.SeatHeld, reservationID, now, showtimeID, model.SeatAvailable)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseHeldByTx returns every row HELD by one of the reservations to
// AVAILABLE and clears the holder.
func (r *ShowSeatRepo) ReleaseHeldByTx(ctx context.Context, tx *sql.Tx, reservationIDs []uint64, now time.Time) (int64, error) {
	if len(reservationIDs) == 0 {
		return 0, nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE showtime_seat_status
		    SET status = ?, held_by_reservation_id = NULL, version = version + 1, updated_at = ?
		  WHERE status = ? AND held_by_reservation_id IN (`+placeholders(len(reservationIDs))+`)`,
		idArgs(reservationIDs, model.SeatAvailable, now, model.SeatHeld)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SellTx flips rows HELD by reservationID to SOLD and clears the holder.
func (r *ShowSeatRepo) SellTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, reservationID uint64, now time.Time) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE showtime_seat_status
		    SET status = ?, held_by_reservation_id = NULL, version = version + 1, updated_at = ?
		  WHERE showtime_id = ? AND status = ? AND held_by_reservation_id = ? AND seat_id IN (`+placeholders(len(seatIDs))+`)`,
		idArgs(seatIDs, model.SeatSold, now, showtimeID, model.SeatHeld, reservationID)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListWithSeatsTx returns every seat of the showtime joined with its
// current status, ordered by row (A..Z, AA, ...) and seat number.
func (r *ShowSeatRepo) ListWithSeatsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64) ([]model.SeatWithStatus, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT s.id, s.auditorium_id, s.seat_code, s.row_label, s.seat_number, s.seat_type, s.created_at, sss.status
		   FROM showtime_seat_status sss
		   JOIN seats s ON s.id = sss.seat_id
		  WHERE sss.showtime_id = ?
		  ORDER BY LENGTH(s.row_label), s.row_label, s.seat_number`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatWithStatus
	for rows.Next() {
		var s model.SeatWithStatus
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.SeatCode, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.CreatedAt, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
