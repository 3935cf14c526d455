package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// OrderRepo provides access to orders.
type OrderRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewOrderRepo returns an OrderRepo bound to db.
func NewOrderRepo(db *sql.DB, dialect database.Dialect) *OrderRepo {
	return &OrderRepo{db: db, dialect: dialect}
}

const orderColumns = `id, user_id, showtime_id, reservation_id, status, total_cents, currency, provider, provider_session_id, created_at, updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o   model.Order
		sid sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &o.ShowtimeID, &o.ReservationID, &o.Status, &o.TotalCents,
		&o.Currency, &o.Provider, &sid, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sid.Valid {
		v := sid.String
		o.ProviderSessionID = &v
	}
	return &o, nil
}

// CreateTx inserts an order and populates its ID. A second order for the
// same reservation fails with ErrDuplicate.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, showtime_id, reservation_id, status, total_cents, currency, provider, provider_session_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.ShowtimeID, o.ReservationID, o.Status, o.TotalCents, o.Currency, o.Provider,
		o.ProviderSessionID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// GetByIDTx returns an order, locking it when lock is set.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	if lock {
		query += r.dialect.ForUpdate()
	}
	return scanOrder(tx.QueryRowContext(ctx, query, id))
}

// GetForUserTx returns an order owned by userID.
func (r *OrderRepo) GetForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND user_id = ?`, id, userID))
}

// GetByReservationTx locks and returns the order created for a reservation.
func (r *OrderRepo) GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE reservation_id = ?`+r.dialect.ForUpdate(), reservationID))
}

// GetByProviderSessionTx returns the order bound to a payment provider
// checkout session.
func (r *OrderRepo) GetByProviderSessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_session_id = ?`, sessionID))
}

// SetStatusTx changes an order's status.
func (r *OrderRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	return err
}
