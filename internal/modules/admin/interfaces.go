package admin

import (
	"context"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
)

type AnalyticsRepository interface {
	Analytics(ctx context.Context, dayStart, dayEnd time.Time) (*domain.Analytics, error)
}
