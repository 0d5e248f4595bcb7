package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotUnavailable = errors.New("slot is not available")
	ErrSlotFull        = errors.New("slot is fully booked")
	ErrNotFound        = errors.New("booking not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidStatus   = errors.New("invalid booking status")
)

// ErrNotCancellable is returned to a player cancelling a booking that has
// left PENDING. It is a Forbidden error.
var ErrNotCancellable = fmt.Errorf("%w: booking is no longer pending", ErrForbidden)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, tag := range e.Fields {
		parts = append(parts, field+":"+tag)
	}
	sort.Strings(parts)
	return "validation error: " + strings.Join(parts, ",")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
