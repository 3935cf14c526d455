package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatRepo provides access to the seats table. Seats are written once per
// auditorium and only read afterwards.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to db.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// CountByAuditoriumTx returns the number of seats in an auditorium.
func (r *SeatRepo) CountByAuditoriumTx(ctx context.Context, tx *sql.Tx, auditoriumID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE auditorium_id = ?`, auditoriumID).Scan(&n)
	return n, err
}

// CreateBulkTx inserts seats in a single multi-row statement.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (auditorium_id, seat_code, row_label, seat_number, seat_type, created_at) VALUES `
	args := make([]interface{}, 0, len(seats)*6)
	for i, s := range seats {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, s.AuditoriumID, s.SeatCode, s.RowLabel, s.SeatNumber, s.SeatType, s.CreatedAt)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return translate(err)
}

// IDsByAuditoriumTx returns the seat ids of an auditorium in ascending order.
func (r *SeatRepo) IDsByAuditoriumTx(ctx context.Context, tx *sql.Tx, auditoriumID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM seats WHERE auditorium_id = ? ORDER BY id`, auditoriumID)
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

// ListByAuditorium returns every seat of an auditorium ordered by row and
// seat number.
func (r *SeatRepo) ListByAuditorium(ctx context.Context, auditoriumID uint64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, auditorium_id, seat_code, row_label, seat_number, seat_type, created_at
		   FROM seats WHERE auditorium_id = ? ORDER BY LENGTH(row_label), row_label, seat_number`, auditoriumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.SeatCode, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
