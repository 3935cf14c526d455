package model

import "time"

// Ticket statuses.
const (
	TicketValid = "VALID"
	TicketUsed  = "USED"
	TicketVoid  = "VOID"
)

// Ticket is the admission credential for one seat of a paid order.
// QRToken is the opaque value encoded in the QR code and presented at
// the door.
type Ticket struct {
	ID        uint64     // tickets.id
	OrderID   uint64     // tickets.order_id
	SeatID    uint64     // tickets.seat_id
	QRToken   string     // tickets.qr_token
	Status    string     // tickets.status
	UsedAt    *time.Time // tickets.used_at (nullable)
	CreatedAt time.Time  // tickets.created_at
}

// TicketDetail is a ticket joined with the order, seat and showtime data
// needed at the door and on the customer's ticket list.
type TicketDetail struct {
	Ticket
	UserID     uint64
	ShowtimeID uint64
	SeatCode   string
	MovieTitle string
	StartsAt   time.Time
	EndsAt     time.Time
}
