package slot

import "github.com/nablus1/TurfArena-booking/internal/domain"

type SlotView struct {
	ID        int64   `json:"id"`
	Date      string  `json:"date"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Price     float64 `json:"price"`
	Capacity  int     `json:"capacity"`
	Remaining int     `json:"remaining"`
}

type SetAvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable"`
}

// GenerateRequest describes an hourly schedule. FromDate defaults to today
// in venue time; slots run from FromHour up to ToHour.
type GenerateRequest struct {
	FromDate string  `json:"fromDate"`
	Days     int     `json:"days" validate:"min=1,max=90"`
	FromHour int     `json:"fromHour" validate:"min=0,max=22"`
	ToHour   int     `json:"toHour" validate:"min=1,max=23,gtfield=FromHour"`
	Price    float64 `json:"price" validate:"gt=0"`
	Capacity int     `json:"capacity" validate:"min=1,max=50"`
}

func toSlotView(s domain.SlotAvailability) SlotView {
	return SlotView{
		ID:        s.ID,
		Date:      s.Date,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Price:     s.Price,
		Capacity:  s.Capacity,
		Remaining: s.Remaining(),
	}
}
