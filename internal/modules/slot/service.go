package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/pkg/validator"
	"github.com/nablus1/TurfArena-booking/internal/repository"
)

// venueZone is where schedule days roll over.
var venueZone = time.FixedZone("EAT", 3*60*60)

type Service struct {
	slots SlotRepositoryInterface
	now   func() time.Time
}

func NewService(slots SlotRepositoryInterface) *Service {
	return &Service{slots: slots, now: time.Now}
}

// ListAvailable returns the bookable slots of date (YYYY-MM-DD).
func (s *Service) ListAvailable(ctx context.Context, date string) ([]SlotView, error) {
	day, err := time.Parse(domain.SlotDateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	rows, err := s.slots.ListAvailable(ctx, day.Format(domain.SlotDateLayout))
	if err != nil {
		return nil, err
	}
	out := make([]SlotView, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSlotView(row))
	}
	return out, nil
}

func (s *Service) SetAvailability(ctx context.Context, slotID int64, available bool) (*domain.Slot, error) {
	slot, err := s.slots.SetAvailability(ctx, slotID, available)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSlotNotFound
	}
	return slot, err
}

// GenerateSchedule creates the hourly slots described by req and skips
// those that already exist. It returns the number of new slots.
func (s *Service) GenerateSchedule(ctx context.Context, req GenerateRequest) (int, error) {
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	if fields := validator.Validate(req); fields != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, fields)
	}

	start := s.now().In(venueZone)
	if req.FromDate != "" {
		d, err := time.Parse(domain.SlotDateLayout, req.FromDate)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDate, req.FromDate)
		}
		start = d
	}

	slots := make([]domain.Slot, 0, req.Days*(req.ToHour-req.FromHour))
	for day := 0; day < req.Days; day++ {
		date := start.AddDate(0, 0, day).Format(domain.SlotDateLayout)
		for hour := req.FromHour; hour < req.ToHour; hour++ {
			slots = append(slots, domain.Slot{
				Date:        date,
				StartTime:   fmt.Sprintf("%02d:00", hour),
				EndTime:     fmt.Sprintf("%02d:00", hour+1),
				Price:       req.Price,
				Capacity:    req.Capacity,
				IsAvailable: true,
			})
		}
	}
	return s.slots.CreateMissing(ctx, slots)
}
