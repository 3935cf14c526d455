package model

import "time"

// Seat statuses for a showtime.
const (
	SeatAvailable = "AVAILABLE"
	SeatHeld      = "HELD"
	SeatSold      = "SOLD"
)

// ShowtimeSeatStatus tracks the availability of one seat for one
// showtime. There is exactly one row per (showtime, seat) pair once the
// showtime has been synced with its auditorium.
//
// A HELD row always names the reservation holding it; AVAILABLE and SOLD
// rows never do. Version is bumped on every transition.
type ShowtimeSeatStatus struct {
	ID                  uint64    // showtime_seat_status.id
	ShowtimeID          uint64    // showtime_seat_status.showtime_id
	SeatID              uint64    // showtime_seat_status.seat_id
	Status              string    // showtime_seat_status.status
	HeldByReservationID *uint64   // showtime_seat_status.held_by_reservation_id (nullable)
	Version             uint32    // showtime_seat_status.version
	UpdatedAt           time.Time // showtime_seat_status.updated_at
}

// HeldBy reports whether the row is HELD by the given reservation.
func (s ShowtimeSeatStatus) HeldBy(reservationID uint64) bool {
	return s.Status == SeatHeld && s.HeldByReservationID != nil && *s.HeldByReservationID == reservationID
}

// SeatWithStatus joins a seat with its status for a showtime.
type SeatWithStatus struct {
	Seat
	Status string `json:"status"`
}
