package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ReservationRepo handles persistence for reservations and
// reservation_seats. Reads meant to precede a state change lock the row
// so concurrent writers serialize on it.
type ReservationRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewReservationRepo creates a new ReservationRepo.
func NewReservationRepo(db *sql.DB, dialect database.Dialect) *ReservationRepo {
	return &ReservationRepo{db: db, dialect: dialect}
}

const reservationColumns = `id, user_id, showtime_id, status, expires_at, created_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.ShowtimeID, &res.Status, &res.ExpiresAt, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateTx inserts a reservation and populates its ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	out, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (user_id, showtime_id, status, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		res.UserID, res.ShowtimeID, res.Status, res.ExpiresAt, res.CreatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// AddSeatsTx inserts one reservation_seats row per seat id.
func (r *ReservationRepo) AddSeatsTx(ctx context.Context, tx *sql.Tx, reservationID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_seats (reservation_id, seat_id) VALUES `
	args := make([]interface{}, 0, len(seatIDs)*2)
	for i, id := range seatIDs {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?)"
		args = append(args, reservationID, id)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return translate(err)
}

// LockOverdueActiveTx locks every ACTIVE reservation whose expiry is at or
// before now and returns their ids in ascending order. Candidates are read
// without locking and then locked by primary key, so the sweep never takes
// range locks that would block concurrent hold inserts.
func (r *ReservationRepo) LockOverdueActiveTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]uint64, error) {
	ids, err := queryIDs(ctx, tx,
		`SELECT id FROM reservations WHERE status = ? AND expires_at <= ? ORDER BY id`,
		model.ReservationActive, now)
	if err != nil || len(ids) == 0 || r.dialect != database.MySQL {
		return ids, err
	}
	return queryIDs(ctx, tx,
		`SELECT id FROM reservations WHERE status = ? AND id IN (`+placeholders(len(ids))+`) ORDER BY id`+r.dialect.ForUpdate(),
		idArgs(ids, model.ReservationActive)...)
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
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

// TransitionTx moves the given reservations from one status to another.
// Rows not currently in from are skipped.
func (r *ReservationRepo) TransitionTx(ctx context.Context, tx *sql.Tx, ids []uint64, from, to string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE status = ? AND id IN (`+placeholders(len(ids))+`)`,
		idArgs(ids, to, from)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByIDTx locks and returns a reservation.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`+r.dialect.ForUpdate(), id))
}

// GetForUserTx locks and returns a reservation owned by userID. A
// reservation owned by someone else is reported as ErrNotFound.
func (r *ReservationRepo) GetForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? AND user_id = ?`+r.dialect.ForUpdate(), id, userID))
}

// ActiveForUserShowtimeTx returns the user's most recent ACTIVE
// reservation for a showtime.
func (r *ReservationRepo) ActiveForUserShowtimeTx(ctx context.Context, tx *sql.Tx, userID, showtimeID uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE user_id = ? AND showtime_id = ? AND status = ?
		  ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, showtimeID, model.ReservationActive))
}

// SeatIDsTx returns the seat ids of a reservation in ascending order.
func (r *ReservationRepo) SeatIDsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]uint64, error) {
	return queryIDs(ctx, tx,
		`SELECT seat_id FROM reservation_seats WHERE reservation_id = ? ORDER BY seat_id`, reservationID)
}

// SeatType pairs a reserved seat with its type for pricing.
type SeatType struct {
	SeatID   uint64
	SeatType string
}

// SeatTypesTx returns the seats of a reservation with their types.
func (r *ReservationRepo) SeatTypesTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]SeatType, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT s.id, s.seat_type
		   FROM reservation_seats rs
		   JOIN seats s ON s.id = rs.seat_id
		  WHERE rs.reservation_id = ?
		  ORDER BY s.id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SeatType
	for rows.Next() {
		var st SeatType
		if err := rows.Scan(&st.SeatID, &st.SeatType); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
