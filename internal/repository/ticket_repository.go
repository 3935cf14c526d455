package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// TicketRepo provides access to tickets.
type TicketRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewTicketRepo returns a TicketRepo bound to db.
func NewTicketRepo(db *sql.DB, dialect database.Dialect) *TicketRepo {
	return &TicketRepo{db: db, dialect: dialect}
}

// SeatIDsByOrderTx returns the seats that already have a ticket in the
// order.
func (r *TicketRepo) SeatIDsByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (map[uint64]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM tickets WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CreateBulkTx inserts tickets in one statement. IDs are not populated;
// callers reload with ListByOrderTx.
func (r *TicketRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (order_id, seat_id, qr_token, status, used_at, created_at) VALUES `
	args := make([]interface{}, 0, len(tickets)*5)
	for i, t := range tickets {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?, ?, NULL, ?)"
		args = append(args, t.OrderID, t.SeatID, t.QRToken, t.Status, t.CreatedAt)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return translate(err)
}

func scanTicket(row rowScanner, t *model.Ticket, extra ...interface{}) error {
	var usedAt sql.NullTime
	dest := append([]interface{}{&t.ID, &t.OrderID, &t.SeatID, &t.QRToken, &t.Status, &usedAt, &t.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if usedAt.Valid {
		v := usedAt.Time
		t.UsedAt = &v
	}
	return nil
}

// ListByOrderTx returns the tickets of an order ordered by seat id.
func (r *TicketRepo) ListByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.Ticket, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, order_id, seat_id, qr_token, status, used_at, created_at
		   FROM tickets WHERE order_id = ? ORDER BY seat_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const ticketDetailQuery = `SELECT t.id, t.order_id, t.seat_id, t.qr_token, t.status, t.used_at, t.created_at,
       o.user_id, o.showtime_id, s.seat_code, st.movie_title, st.starts_at, st.ends_at
  FROM tickets t
  JOIN orders o ON o.id = t.order_id
  JOIN seats s ON s.id = t.seat_id
  JOIN showtimes st ON st.id = o.showtime_id`

func scanTicketDetail(row rowScanner) (*model.TicketDetail, error) {
	var d model.TicketDetail
	err := scanTicket(row, &d.Ticket, &d.UserID, &d.ShowtimeID, &d.SeatCode, &d.MovieTitle, &d.StartsAt, &d.EndsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDetailByTokenTx locks the ticket with the given QR token and returns
// it with its order, seat and showtime data.
func (r *TicketRepo) GetDetailByTokenTx(ctx context.Context, tx *sql.Tx, token string) (*model.TicketDetail, error) {
	return scanTicketDetail(tx.QueryRowContext(ctx, ticketDetailQuery+` WHERE t.qr_token = ?`+r.dialect.ForUpdate(), token))
}

// MarkUsedTx moves a VALID ticket to USED. A zero count means the ticket
// was not VALID anymore.
func (r *TicketRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, used_at = ? WHERE id = ? AND status = ?`,
		model.TicketUsed, now, id, model.TicketValid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListDetailsByUser returns every ticket bought by a user, soonest
// showtime first.
func (r *TicketRepo) ListDetailsByUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		ticketDetailQuery+` WHERE o.user_id = ? ORDER BY st.starts_at, t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketDetail
	for rows.Next() {
		d, err := scanTicketDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDetailForUser returns one ticket owned by userID.
func (r *TicketRepo) GetDetailForUser(ctx context.Context, id, userID uint64) (*model.TicketDetail, error) {
	return scanTicketDetail(r.db.QueryRowContext(ctx, ticketDetailQuery+` WHERE t.id = ? AND o.user_id = ?`, id, userID))
}
