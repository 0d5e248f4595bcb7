package payment

import (
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

type PushRequest struct {
	BookingID   int64  `json:"bookingId"`
	PhoneNumber string `json:"phoneNumber"`
}

type PaymentRef struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type PushResponse struct {
	CheckoutRequestID string     `json:"checkoutRequestId"`
	Message           string     `json:"message"`
	Payment           PaymentRef `json:"payment"`
}

type BookingRef struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type StatusResponse struct {
	CheckoutRequestID string     `json:"checkoutRequestId"`
	Status            string     `json:"status"`
	ReceiptNumber     string     `json:"receiptNumber,omitempty"`
	ResultDesc        string     `json:"resultDesc,omitempty"`
	Booking           BookingRef `json:"booking"`
}

// Ack is the body returned to the provider for every callback delivery.
type Ack struct {
	ResultCode        int    `json:"resultCode"`
	ResultDescription string `json:"resultDescription"`
}

func acceptAck() Ack { return Ack{ResultCode: 0, ResultDescription: "Accepted"} }

func rejectAck(reason string) Ack { return Ack{ResultCode: 1, ResultDescription: reason} }

// CallbackOutcome reports what a callback or reconciliation did.
type CallbackOutcome struct {
	Payment *domain.Payment
	// Applied is false for replays against an already settled payment.
	Applied bool
}

type ReconcileResult struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	Status            string `json:"status"`
	Pending           bool   `json:"pending"`
	Applied           bool   `json:"applied"`
	ResultDesc        string `json:"resultDesc,omitempty"`
}

type ReconcileSummary struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

type paymentEvent struct {
	PaymentID         int64     `json:"paymentId"`
	BookingID         int64     `json:"bookingId"`
	CheckoutRequestID string    `json:"checkoutRequestId"`
	Status            string    `json:"status"`
	ReceiptNumber     string    `json:"receiptNumber,omitempty"`
	Amount            float64   `json:"amount"`
	Source            string    `json:"source"`
	At                time.Time `json:"at"`
}

func statusOf(p *domain.Payment, b *domain.Booking) StatusResponse {
	out := StatusResponse{
		CheckoutRequestID: p.CheckoutRequestID,
		Status:            string(p.Status),
		ReceiptNumber:     p.ReceiptNumber,
		Booking:           BookingRef{ID: p.BookingID},
	}
	if p.Status == domain.PaymentFailed {
		out.ResultDesc = p.ResultDesc
	}
	if b != nil {
		out.Booking.Status = string(b.Status)
	}
	return out
}
