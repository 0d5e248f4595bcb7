package payment

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrForbidden         = errors.New("forbidden")
	ErrBookingNotPending = errors.New("booking is not awaiting payment")
	ErrAlreadyPaid       = errors.New("booking is already paid")
	ErrUpstream          = errors.New("payment provider error")
	ErrMalformedCallback = errors.New("malformed callback")
)

// UpstreamError carries the provider's human readable reason and matches
// ErrUpstream.
type UpstreamError struct {
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return "payment provider error: " + e.Err.Error()
	}
	return "payment provider error: " + e.Reason
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }
