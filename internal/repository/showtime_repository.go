package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ShowtimeRepo provides access to showtimes.
type ShowtimeRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewShowtimeRepo returns a ShowtimeRepo bound to db.
func NewShowtimeRepo(db *sql.DB, dialect database.Dialect) *ShowtimeRepo {
	return &ShowtimeRepo{db: db, dialect: dialect}
}

const showtimeColumns = `id, auditorium_id, movie_title, starts_at, ends_at, status, created_at, updated_at`

func scanShowtime(row rowScanner) (*model.Showtime, error) {
	var s model.Showtime
	err := row.Scan(&s.ID, &s.AuditoriumID, &s.MovieTitle, &s.StartsAt, &s.EndsAt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a showtime and populates its ID.
func (r *ShowtimeRepo) Create(ctx context.Context, s *model.Showtime) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO showtimes (auditorium_id, movie_title, starts_at, ends_at, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.AuditoriumID, s.MovieTitle, s.StartsAt, s.EndsAt, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByIDTx loads a showtime inside tx, optionally locking it.
func (r *ShowtimeRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (*model.Showtime, error) {
	query := `SELECT ` + showtimeColumns + ` FROM showtimes WHERE id = ?`
	if lock {
		query += r.dialect.ForUpdate()
	}
	return scanShowtime(tx.QueryRowContext(ctx, query, id))
}

// UpdateTx writes every mutable column of s. The caller is expected to
// have loaded the row in the same transaction.
func (r *ShowtimeRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s model.Showtime) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE showtimes SET auditorium_id = ?, movie_title = ?, starts_at = ?, ends_at = ?, updated_at = ? WHERE id = ?`,
		s.AuditoriumID, s.MovieTitle, s.StartsAt, s.EndsAt, s.UpdatedAt, s.ID)
	return err
}
