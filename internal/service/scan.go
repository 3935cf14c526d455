package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Scan results.
const (
	ScanValid       = "VALID"
	ScanAlreadyUsed = "ALREADY_USED"
	ScanInvalid     = "INVALID"
)

// TicketService validates tickets at the door and lists them for their
// owners.
type TicketService struct {
	base
	entryOpen time.Duration
	grace     time.Duration
}

// NewTicketService builds a TicketService.
func NewTicketService(d Deps, s Settings) *TicketService {
	return &TicketService{
		base:      newBase(d),
		entryOpen: time.Duration(s.EntryOpenMinutes) * time.Minute,
		grace:     time.Duration(s.ScanGraceMinutes) * time.Minute,
	}
}

// ScanResult is the outcome of presenting a QR token.
type ScanResult struct {
	Result     string     `json:"result"`
	TicketID   uint64     `json:"ticket_id,omitempty"`
	OrderID    uint64     `json:"order_id,omitempty"`
	ShowtimeID uint64     `json:"showtime_id,omitempty"`
	SeatCode   string     `json:"seat_code,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	Message    string     `json:"message"`
}

// ScanTicket consumes a VALID ticket. A ticket is admitted at most once;
// later scans report ALREADY_USED with the original time. Tickets whose
// showtime ended more than the grace period ago are INVALID.
func (s *TicketService) ScanTicket(ctx context.Context, qrToken string) (*ScanResult, error) {
	if qrToken == "" {
		return nil, newError(ErrValidation, "qr_token is required")
	}
	var out *ScanResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.clock()
		t, err := s.tickets.GetDetailByTokenTx(ctx, tx, qrToken)
		if errors.Is(err, repository.ErrNotFound) {
			out = &ScanResult{Result: ScanInvalid, Message: "Ticket not found"}
			return nil
		}
		if err != nil {
			return err
		}
		out = &ScanResult{
			TicketID:   t.ID,
			OrderID:    t.OrderID,
			ShowtimeID: t.ShowtimeID,
			SeatCode:   t.SeatCode,
			UsedAt:     t.UsedAt,
		}
		switch {
		case t.Status == model.TicketUsed:
			out.Result = ScanAlreadyUsed
			out.Message = "Ticket has already been used"
			return nil
		case t.Status != model.TicketValid:
			out.Result = ScanInvalid
			out.Message = "Ticket is not valid for entry (" + t.Status + ")"
			return nil
		}
		w := NewWindow(t.StartsAt, t.EndsAt, s.entryOpen, s.grace)
		if now.After(w.ActiveUntil) {
			out.Result = ScanInvalid
			out.Message = "Ticket expired after showtime ended"
			return nil
		}
		n, err := s.tickets.MarkUsedTx(ctx, tx, t.ID, now)
		if err != nil {
			return err
		}
		if n != 1 {
			out.Result = ScanAlreadyUsed
			out.Message = "Ticket has already been used"
			return nil
		}
		out.Result = ScanValid
		out.UsedAt = &now
		out.Message = "Ticket validated and marked as used"
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TicketScan(out.Result)
	s.logger(ctx).Info("ticket scanned", "result", out.Result, "ticket_id", out.TicketID)
	return out, nil
}

// TicketSummary is a ticket on its owner's list.
type TicketSummary struct {
	ID             uint64     `json:"id"`
	OrderID        uint64     `json:"order_id"`
	ShowtimeID     uint64     `json:"showtime_id"`
	MovieTitle     string     `json:"movie_title"`
	SeatCode       string     `json:"seat_code"`
	QRToken        string     `json:"qr_token"`
	Status         string     `json:"status"`
	LifecycleState string     `json:"lifecycle_state"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	EntryOpensAt   time.Time  `json:"entry_opens_at"`
	ActiveUntil    time.Time  `json:"active_until"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

// ListTicketsForUser returns the user's tickets with their lifecycle
// state.
func (s *TicketService) ListTicketsForUser(ctx context.Context, userID uint64) ([]TicketSummary, error) {
	rows, err := s.tickets.ListDetailsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	out := make([]TicketSummary, 0, len(rows))
	for _, t := range rows {
		w := NewWindow(t.StartsAt, t.EndsAt, s.entryOpen, s.grace)
		out = append(out, TicketSummary{
			ID:             t.ID,
			OrderID:        t.OrderID,
			ShowtimeID:     t.ShowtimeID,
			MovieTitle:     t.MovieTitle,
			SeatCode:       t.SeatCode,
			QRToken:        t.QRToken,
			Status:         t.Status,
			LifecycleState: ResolveLifecycle(t.Status, now, w),
			StartsAt:       t.StartsAt,
			EndsAt:         t.EndsAt,
			EntryOpensAt:   w.EntryOpensAt,
			ActiveUntil:    w.ActiveUntil,
			UsedAt:         t.UsedAt,
		})
	}
	return out, nil
}

// TicketQRCode renders the ticket's QR token as a PNG of size pixels.
func (s *TicketService) TicketQRCode(ctx context.Context, ticketID, userID uint64, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	if size > 1024 {
		return nil, newError(ErrValidation, "size must not exceed 1024")
	}
	t, err := s.tickets.GetDetailForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, notFound(err, "ticket")
	}
	return qrcode.Encode(t.QRToken, qrcode.Medium, size)
}
