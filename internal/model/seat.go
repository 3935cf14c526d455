package model

import "time"

// Seat types. Pricing is flat per type.
const (
	SeatTypeStandard = "STANDARD"
	SeatTypePremium  = "PREMIUM"
	SeatTypeVIP      = "VIP"
)

// Seat is a physical seat inside an auditorium. Seats are generated once
// when the auditorium is provisioned and are never modified afterwards.
//
// Fields:
//
//	ID           – primary key identifier.
//	AuditoriumID – auditorium the seat belongs to.
//	SeatCode     – row label followed by the seat number (e.g. "C7"),
//	               unique within the auditorium.
//	RowLabel     – alphabetical row label.
//	SeatNumber   – 1-based position within the row.
//	SeatType     – STANDARD, PREMIUM or VIP.
//	CreatedAt    – creation timestamp.
type Seat struct {
	ID           uint64    `json:"id"`            // seats.id
	AuditoriumID uint64    `json:"auditorium_id"` // seats.auditorium_id
	SeatCode     string    `json:"seat_code"`     // seats.seat_code
	RowLabel     string    `json:"row_label"`     // seats.row_label
	SeatNumber   uint32    `json:"seat_number"`   // seats.seat_number
	SeatType     string    `json:"seat_type"`     // seats.seat_type
	CreatedAt    time.Time `json:"-"`             // seats.created_at
}
