package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingNoShow    BookingStatus = "NO_SHOW"
)

// ActiveBookingStatuses are the statuses that occupy slot capacity.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

type Booking struct {
	ID              int64         `json:"id"`
	Reference       string        `json:"reference"`
	UserID          int64         `json:"userId"`
	SlotID          int64         `json:"slotId"`
	TotalAmount     float64       `json:"totalAmount"`
	PlayerCount     int           `json:"playerCount"`
	Notes           string        `json:"notes,omitempty"`
	Status          BookingStatus `json:"status"`
	EntryToken      string        `json:"entryToken"`
	IsValidated     bool          `json:"isValidated"`
	ValidatedAt     *time.Time    `json:"validatedAt,omitempty"`
	ValidatedBy     *int64        `json:"validatedBy,omitempty"`
	ValidationNotes string        `json:"validationNotes,omitempty"`
	CancelledAt     *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// BookingDetails joins a booking with its slot, owner and payment.
type BookingDetails struct {
	Booking Booking  `json:"booking"`
	Slot    Slot     `json:"slot"`
	User    User     `json:"user"`
	Payment *Payment `json:"payment,omitempty"`
}

type BookingFilter struct {
	UserID int64
	Status BookingStatus
	Page   int
	Limit  int
	Oldest bool
}

type Analytics struct {
	TotalBookings     int64                   `json:"totalBookings"`
	ByStatus          map[BookingStatus]int64 `json:"byStatus"`
	TodayBookings     int64                   `json:"todayBookings"`
	ValidatedTickets  int64                   `json:"validatedTickets"`
	PendingPayments   int64                   `json:"pendingPayments"`
	CompletedPayments int64                   `json:"completedPayments"`
	Revenue           float64                 `json:"revenue"`
}
