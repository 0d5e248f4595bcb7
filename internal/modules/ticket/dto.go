package ticket

import (
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

type ValidateRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SlotInfo struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type PaymentInfo struct {
	Status        string `json:"status"`
	ReceiptNumber string `json:"receiptNumber,omitempty"`
}

// TicketDetails is what the gate sees for a scanned code.
type TicketDetails struct {
	BookingID       int64        `json:"bookingId"`
	Reference       string       `json:"reference"`
	Status          string       `json:"status"`
	PlayerCount     int          `json:"playerCount"`
	TotalAmount     float64      `json:"totalAmount"`
	Slot            SlotInfo     `json:"slot"`
	Customer        Contact      `json:"customer"`
	Payment         *PaymentInfo `json:"payment,omitempty"`
	IsValidated     bool         `json:"isValidated"`
	ValidatedAt     *time.Time   `json:"validatedAt,omitempty"`
	ValidatedBy     *int64       `json:"validatedBy,omitempty"`
	ValidationNotes string       `json:"validationNotes,omitempty"`
}

type validatedEvent struct {
	BookingID   int64     `json:"bookingId"`
	Reference   string    `json:"reference"`
	ValidatorID int64     `json:"validatorId"`
	At          time.Time `json:"at"`
}

func toTicket(d *domain.BookingDetails) *TicketDetails {
	b := d.Booking
	t := &TicketDetails{
		BookingID:       b.ID,
		Reference:       b.Reference,
		Status:          string(b.Status),
		PlayerCount:     b.PlayerCount,
		TotalAmount:     b.TotalAmount,
		Slot:            SlotInfo{Date: d.Slot.Date, StartTime: d.Slot.StartTime, EndTime: d.Slot.EndTime},
		Customer:        Contact{Name: d.User.Name, Email: d.User.Email, Phone: d.User.Phone},
		IsValidated:     b.IsValidated,
		ValidatedAt:     b.ValidatedAt,
		ValidatedBy:     b.ValidatedBy,
		ValidationNotes: b.ValidationNotes,
	}
	if d.Payment != nil {
		t.Payment = &PaymentInfo{Status: string(d.Payment.Status), ReceiptNumber: d.Payment.ReceiptNumber}
	}
	return t
}
