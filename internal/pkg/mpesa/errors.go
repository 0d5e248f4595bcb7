package mpesa

import "fmt"

// Error is returned for every failed gateway call. Reason is safe to show to
// the payer.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("mpesa %s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
