package ticket

import "errors"

var (
	ErrNotFound          = errors.New("ticket not found")
	ErrAlreadyValidated  = errors.New("ticket already validated")
	ErrNotConfirmed      = errors.New("booking is not confirmed")
	ErrPaymentIncomplete = errors.New("payment is not completed")
)
