package domain

import "time"

// SlotDateLayout is the storage and wire format of Slot.Date.
const SlotDateLayout = "2006-01-02"

type Slot struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Price       float64   `json:"price"`
	Capacity    int       `json:"capacity"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SlotAvailability is a slot together with its live occupancy.
type SlotAvailability struct {
	Slot
	ActiveBookings int `json:"activeBookings"`
}

func (s SlotAvailability) Remaining() int {
	if r := s.Capacity - s.ActiveBookings; r > 0 {
		return r
	}
	return 0
}
