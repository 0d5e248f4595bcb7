package domain

import "time"

type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

const PaymentMethodMpesa = "MPESA"

type Payment struct {
	ID                int64         `json:"id"`
	BookingID         int64         `json:"bookingId"`
	UserID            int64         `json:"userId"`
	Amount            float64       `json:"amount"`
	Method            string        `json:"method"`
	PhoneNumber       string        `json:"phoneNumber"`
	MerchantRequestID string        `json:"merchantRequestId"`
	CheckoutRequestID string        `json:"checkoutRequestId"`
	Status            PaymentStatus `json:"status"`
	ReceiptNumber     string        `json:"receiptNumber,omitempty"`
	PaidAmount        *float64      `json:"paidAmount,omitempty"`
	PayerPhone        string        `json:"payerPhone,omitempty"`
	ResultCode        *int          `json:"resultCode,omitempty"`
	ResultDesc        string        `json:"resultDesc,omitempty"`
	PaidAt            *time.Time    `json:"paidAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// PaymentResult is the provider's final word on a push payment, from a
// callback or a status query.
type PaymentResult struct {
	CheckoutRequestID string
	Success           bool
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	PaidAmount        *float64
	PayerPhone        string
	At                time.Time
}
