package payment

import (
	"context"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mpesa"
	"github.com/nablus1/TurfArena-booking/internal/repository"
)

// Gateway is the push-payment provider.
type Gateway interface {
	Initiate(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.ProviderStatus, error)
}

type paymentRepo interface {
	GetByCheckoutID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error)
	SaveAttempt(ctx context.Context, p *domain.Payment) error
	ApplyResult(ctx context.Context, result domain.PaymentResult) (*repository.AppliedResult, error)
	ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)
}

type bookingReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetDetails(ctx context.Context, id int64) (*domain.BookingDetails, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Notifier interface {
	NotifyPaymentResult(ctx context.Context, d *domain.BookingDetails) error
}

// Broadcaster pushes status changes to live subscribers of a checkout id.
type Broadcaster interface {
	Broadcast(checkoutRequestID string, status StatusResponse)
}
