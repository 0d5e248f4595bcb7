package slot

import (
	"context"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

type SlotRepositoryInterface interface {
	ListAvailable(ctx context.Context, date string) ([]domain.SlotAvailability, error)
	SetAvailability(ctx context.Context, id int64, available bool) (*domain.Slot, error)
	CreateMissing(ctx context.Context, slots []domain.Slot) (int, error)
}
