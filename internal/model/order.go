package model

import "time"

// Order statuses. PENDING moves to PAID or FAILED exactly once.
const (
	OrderPending = "PENDING"
	OrderPaid    = "PAID"
	OrderFailed  = "FAILED"
)

// Order is the purchase created from a reservation at checkout. There is
// at most one order per reservation.
type Order struct {
	ID                uint64    // orders.id
	UserID            uint64    // orders.user_id
	ShowtimeID        uint64    // orders.showtime_id
	ReservationID     uint64    // orders.reservation_id
	Status            string    // orders.status
	TotalCents        uint32    // orders.total_cents
	Currency          string    // orders.currency
	Provider          string    // orders.provider
	ProviderSessionID *string   // orders.provider_session_id (nullable)
	CreatedAt         time.Time // orders.created_at
	UpdatedAt         time.Time // orders.updated_at
}

// Terminal reports whether the order can no longer change status.
func (o Order) Terminal() bool {
	return o.Status == OrderPaid || o.Status == OrderFailed
}
