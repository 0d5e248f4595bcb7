package admin

import "github.com/nablus1/TurfArena-booking/internal/domain"

type AnalyticsResponse struct {
	domain.Analytics
	// Date is the venue-local day TodayBookings refers to.
	Date string `json:"date"`
}
