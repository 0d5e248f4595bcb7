package booking

import (
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

type CreateBookingRequest struct {
	SlotID      int64  `json:"slotId" validate:"required,min=1"`
	PlayerCount int    `json:"playerCount" validate:"min=1,max=22"`
	Notes       string `json:"notes" validate:"max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ListQuery is the paging and filtering input of the list endpoints.
type ListQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Sort   string `form:"sort"`
}

type ListResult struct {
	Bookings []domain.BookingDetails
	Page     int
	Limit    int
	Total    int64
}

type bookingEvent struct {
	BookingID   int64     `json:"bookingId"`
	Reference   string    `json:"reference"`
	UserID      int64     `json:"userId"`
	SlotID      int64     `json:"slotId"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"totalAmount"`
	At          time.Time `json:"at"`
}

func newBookingEvent(b *domain.Booking, at time.Time) bookingEvent {
	return bookingEvent{
		BookingID:   b.ID,
		Reference:   b.Reference,
		UserID:      b.UserID,
		SlotID:      b.SlotID,
		Status:      string(b.Status),
		TotalAmount: b.TotalAmount,
		At:          at,
	}
}
