package model

import (
	"errors"
	"time"
)

// Showtime statuses.
const (
	ShowtimeScheduled = "SCHEDULED"
	ShowtimeCanceled  = "CANCELED"
)

// Showtime is a single screening of a movie in an auditorium.
type Showtime struct {
	ID           uint64    `json:"id"`            // showtimes.id
	AuditoriumID uint64    `json:"auditorium_id"` // showtimes.auditorium_id
	MovieTitle   string    `json:"movie_title"`   // showtimes.movie_title
	StartsAt     time.Time `json:"starts_at"`     // showtimes.starts_at
	EndsAt       time.Time `json:"ends_at"`       // showtimes.ends_at
	Status       string    `json:"status"`        // showtimes.status
	CreatedAt    time.Time `json:"created_at"`    // showtimes.created_at
	UpdatedAt    time.Time `json:"updated_at"`    // showtimes.updated_at
}

// ErrInvalidShowtimeWindow is returned when a showtime would end at or
// before its start.
var ErrInvalidShowtimeWindow = errors.New("starts_at must be before ends_at")

// ShowtimePatch names the showtime fields an update may change. Nil
// fields are left untouched.
type ShowtimePatch struct {
	AuditoriumID *uint64    `json:"auditorium_id"`
	MovieTitle   *string    `json:"movie_title"`
	StartsAt     *time.Time `json:"starts_at"`
	EndsAt       *time.Time `json:"ends_at"`
}

// Empty reports whether the patch changes nothing.
func (p ShowtimePatch) Empty() bool {
	return p.AuditoriumID == nil && p.MovieTitle == nil && p.StartsAt == nil && p.EndsAt == nil
}

// Apply returns a copy of s with the patch applied and validates the result.
func (p ShowtimePatch) Apply(s Showtime) (Showtime, error) {
	if p.AuditoriumID != nil {
		if *p.AuditoriumID == 0 {
			return s, errors.New("auditorium_id must be positive")
		}
		s.AuditoriumID = *p.AuditoriumID
	}
	if p.MovieTitle != nil {
		if *p.MovieTitle == "" {
			return s, errors.New("movie_title must not be empty")
		}
		s.MovieTitle = *p.MovieTitle
	}
	if p.StartsAt != nil {
		s.StartsAt = p.StartsAt.UTC()
	}
	if p.EndsAt != nil {
		s.EndsAt = p.EndsAt.UTC()
	}
	if !s.StartsAt.Before(s.EndsAt) {
		return s, ErrInvalidShowtimeWindow
	}
	return s, nil
}
