package model

import "time"

// Reservation statuses. ACTIVE is the only non-terminal state.
const (
	ReservationActive    = "ACTIVE"
	ReservationExpired   = "EXPIRED"
	ReservationCanceled  = "CANCELED"
	ReservationCompleted = "COMPLETED"
)

// Reservation is a time-limited hold on a set of seats for a showtime.
//
// Fields:
//
//	ID         – primary key identifier.
//	UserID     – user who placed the hold.
//	ShowtimeID – showtime being held.
//	Status     – ACTIVE, EXPIRED, CANCELED or COMPLETED.
//	ExpiresAt  – instant after which an ACTIVE hold is swept.
//	CreatedAt  – creation timestamp.
type Reservation struct {
	ID         uint64    // reservations.id
	UserID     uint64    // reservations.user_id
	ShowtimeID uint64    // reservations.showtime_id
	Status     string    // reservations.status
	ExpiresAt  time.Time // reservations.expires_at
	CreatedAt  time.Time // reservations.created_at
}

// ReservationSeat links a reservation to one of its seats. Rows are
// written with the reservation and never change.
type ReservationSeat struct {
	ID            uint64 // reservation_seats.id
	ReservationID uint64 // reservation_seats.reservation_id
	SeatID        uint64 // reservation_seats.seat_id
}
