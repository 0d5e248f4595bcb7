package ticket

import (
	"context"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

type BookingRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.BookingDetails, error)
	GetDetails(ctx context.Context, id int64) (*domain.BookingDetails, error)
	MarkValidated(ctx context.Context, id, validatorID int64, notes string, at time.Time) (bool, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}
