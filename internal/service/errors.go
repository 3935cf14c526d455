package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Error kinds. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("invalid request")
)

// Error is a service failure with a client facing message.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// SeatConflictError reports seats that are not AVAILABLE.
type SeatConflictError struct {
	SeatIDs []uint64
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.SeatIDs)
}

func (e *SeatConflictError) Unwrap() error { return ErrConflict }

// MissingSeatsError reports requested seats that do not exist for the
// showtime.
type MissingSeatsError struct {
	SeatIDs []uint64
}

func (e *MissingSeatsError) Error() string {
	return fmt.Sprintf("seats not found for showtime: %v", e.SeatIDs)
}

func (e *MissingSeatsError) Unwrap() error { return ErrNotFound }

// notFound turns repository.ErrNotFound into a service NotFound naming
// what was missing. Other errors pass through.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, "%s not found", what)
	}
	return err
}
