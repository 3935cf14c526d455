// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

// TicketsIssuedQueue is the durable queue carrying TicketsIssuedEvent.
const TicketsIssuedQueue = "tickets.issued"

// TicketsIssuedEvent is published when an order is paid and its tickets
// are minted. It carries enough for downstream consumers to log, notify
// or feed analytics without querying the primary database.
type TicketsIssuedEvent struct {
	OrderID       uint64   `json:"order_id"`
	ReservationID uint64   `json:"reservation_id"`
	UserID        uint64   `json:"user_id"`
	ShowtimeID    uint64   `json:"showtime_id"`
	MovieTitle    string   `json:"movie_title"`
	StartsAt      string   `json:"starts_at"`
	SeatIDs       []uint64 `json:"seat_ids"`
	TicketCount   int      `json:"ticket_count"`
	TotalCents    uint32   `json:"total_cents"`
	Currency      string   `json:"currency"`
	PaidAt        string   `json:"paid_at"`
}
