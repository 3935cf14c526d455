package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// AuditoriumRepo provides access to auditoriums and their seat maps.
type AuditoriumRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewAuditoriumRepo returns an AuditoriumRepo bound to db.
func NewAuditoriumRepo(db *sql.DB, dialect database.Dialect) *AuditoriumRepo {
	return &AuditoriumRepo{db: db, dialect: dialect}
}

// Create inserts an auditorium and populates its ID.
func (r *AuditoriumRepo) Create(ctx context.Context, a *model.Auditorium) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO auditoriums (theater_id, name, seat_map_id, created_at) VALUES (?, ?, ?, ?)`,
		a.TheaterID, a.Name, a.SeatMapID, a.CreatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByIDTx loads an auditorium inside tx. When lock is set the row is
// locked until the transaction ends.
func (r *AuditoriumRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (*model.Auditorium, error) {
	query := `SELECT id, theater_id, name, seat_map_id, created_at FROM auditoriums WHERE id = ?`
	if lock {
		query += r.dialect.ForUpdate()
	}
	var (
		a         model.Auditorium
		theaterID sql.NullInt64
		seatMapID sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, query, id).Scan(&a.ID, &theaterID, &a.Name, &seatMapID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if theaterID.Valid {
		v := uint64(theaterID.Int64)
		a.TheaterID = &v
	}
	if seatMapID.Valid {
		v := uint64(seatMapID.Int64)
		a.SeatMapID = &v
	}
	return &a, nil
}

// CreateSeatMapTx inserts a seat map and populates its ID.
func (r *AuditoriumRepo) CreateSeatMapTx(ctx context.Context, tx *sql.Tx, m *model.SeatMap) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO seat_maps (name, layout_json, created_at) VALUES (?, ?, ?)`,
		m.Name, m.LayoutJSON, m.CreatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// SetSeatMapTx links an auditorium to a seat map.
func (r *AuditoriumRepo) SetSeatMapTx(ctx context.Context, tx *sql.Tx, auditoriumID, seatMapID uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE auditoriums SET seat_map_id = ? WHERE id = ?`, seatMapID, auditoriumID)
	return err
}

// GetSeatMapByAuditorium returns the seat map linked to an auditorium, or
// ErrNotFound when the auditorium is missing or has none yet.
func (r *AuditoriumRepo) GetSeatMapByAuditorium(ctx context.Context, auditoriumID uint64) (*model.SeatMap, error) {
	var m model.SeatMap
	err := r.db.QueryRowContext(ctx,
		`SELECT sm.id, sm.name, sm.layout_json, sm.created_at
		   FROM seat_maps sm
		   JOIN auditoriums a ON a.seat_map_id = sm.id
		  WHERE a.id = ?`, auditoriumID).Scan(&m.ID, &m.Name, &m.LayoutJSON, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
