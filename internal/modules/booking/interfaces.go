package booking

import (
	"context"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

// BookingRepository defines the storage operations the service needs.
type BookingRepository interface {
	CreateWithCapacity(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetDetails(ctx context.Context, id int64) (*domain.BookingDetails, error)
	List(ctx context.Context, f domain.BookingFilter) ([]domain.BookingDetails, int64, error)
	CancelIfPending(ctx context.Context, id int64, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Notifier interface {
	NotifyBookingCreated(ctx context.Context, d *domain.BookingDetails) error
}
