package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

// venueZone is the venue's local time; "today" follows it.
var venueZone = time.FixedZone("EAT", 3*60*60)

type Service struct {
	repo AnalyticsRepository
	now  func() time.Time
}

func NewService(repo AnalyticsRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Analytics returns dashboard totals. TodayBookings counts bookings created
// since local midnight at the venue.
func (s *Service) Analytics(ctx context.Context) (*AnalyticsResponse, error) {
	local := s.now().In(venueZone)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, venueZone)
	end := start.AddDate(0, 0, 1)

	a, err := s.repo.Analytics(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}
	for _, st := range []domain.BookingStatus{
		domain.BookingPending, domain.BookingConfirmed, domain.BookingCancelled,
		domain.BookingCompleted, domain.BookingNoShow,
	} {
		if _, ok := a.ByStatus[st]; !ok {
			a.ByStatus[st] = 0
		}
	}
	return &AnalyticsResponse{Analytics: *a, Date: start.Format(domain.SlotDateLayout)}, nil
}
