package slot

import "errors"

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrSlotNotFound = errors.New("slot not found")
	ErrValidation   = errors.New("validation failed")
)
