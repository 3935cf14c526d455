package service

import (
	"strings"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// Lifecycle states of a ticket as seen by its holder.
const (
	LifecycleUpcoming = "UPCOMING"
	LifecycleActive   = "ACTIVE"
	LifecycleExpired  = "EXPIRED"
	LifecycleUsed     = "USED"
	LifecycleVoid     = "VOID"
	LifecycleInvalid  = "INVALID"
)

// Window is the span during which a VALID ticket admits its holder.
type Window struct {
	EntryOpensAt time.Time
	ActiveUntil  time.Time
}

// NewWindow opens entry entryOpen before the showtime starts and closes
// it grace after it ends. Negative durations count as zero.
func NewWindow(startsAt, endsAt time.Time, entryOpen, grace time.Duration) Window {
	if entryOpen < 0 {
		entryOpen = 0
	}
	if grace < 0 {
		grace = 0
	}
	if endsAt.IsZero() {
		endsAt = startsAt
	}
	return Window{
		EntryOpensAt: startsAt.Add(-entryOpen),
		ActiveUntil:  endsAt.Add(grace),
	}
}

// ResolveLifecycle derives the lifecycle state from the ticket status and
// the clock. Time only matters for VALID tickets.
func ResolveLifecycle(status string, now time.Time, w Window) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case model.TicketUsed:
		return LifecycleUsed
	case model.TicketVoid:
		return LifecycleVoid
	case model.TicketValid:
	default:
		return LifecycleInvalid
	}
	if now.Before(w.EntryOpensAt) {
		return LifecycleUpcoming
	}
	if !now.After(w.ActiveUntil) {
		return LifecycleActive
	}
	return LifecycleExpired
}
