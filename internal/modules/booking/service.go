package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/metrics"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/keylock"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mq"
	"github.com/nablus1/TurfArena-booking/internal/pkg/validator"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"github.com/google/uuid"
)

const (
	referencePrefix = "JTA"
	maxCodeAttempts = 3
	defaultLimit    = 10
	maxLimit        = 100
)

type Service struct {
	bookings BookingRepository
	locks    *keylock.Locker
	events   EventPublisher
	notifier Notifier
	loggerf  func(format string, args ...interface{})
	now      func() time.Time
}

func NewService(bookings BookingRepository, locks *keylock.Locker) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		bookings: bookings,
		locks:    locks,
		loggerf:  func(string, ...interface{}) {},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetLogger(loggerf func(format string, args ...interface{})) {
	if loggerf != nil {
		s.loggerf = loggerf
	}
}

// Create reserves a place on the slot as a PENDING booking. Creates for the
// same slot are serialized in process and the capacity check runs under a
// row lock in the same transaction as the insert.
func (s *Service) Create(ctx context.Context, userID int64, req CreateBookingRequest) (*domain.Booking, error) {
	req.Notes = strings.TrimSpace(req.Notes)
	if fields := validator.Validate(req); fields != nil {
		metrics.RecordBooking("invalid")
		return nil, &ValidationError{Fields: fields}
	}

	unlock := s.locks.Lock(fmt.Sprintf("slot:%d", req.SlotID))
	defer unlock()

	var b *domain.Booking
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		b = &domain.Booking{
			Reference:   newReference(s.now()),
			EntryToken:  newEntryToken(),
			UserID:      userID,
			SlotID:      req.SlotID,
			PlayerCount: req.PlayerCount,
			Notes:       req.Notes,
		}
		err = s.bookings.CreateWithCapacity(ctx, b)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.loggerf("level=warn msg=booking code collision slot_id=%d attempt=%d", req.SlotID, attempt+1)
	}

	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordBooking("slot_not_found")
		return nil, ErrSlotNotFound
	case errors.Is(err, repository.ErrSlotUnavailable):
		metrics.RecordBooking("unavailable")
		return nil, ErrSlotUnavailable
	case errors.Is(err, repository.ErrSlotFull):
		metrics.RecordBooking("full")
		return nil, ErrSlotFull
	default:
		metrics.RecordBooking("error")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.RecordBooking("created")
	s.loggerf("level=info msg=booking created booking_id=%d reference=%s slot_id=%d user_id=%d", b.ID, b.Reference, b.SlotID, userID)
	s.afterCreate(ctx, b)
	return b, nil
}

func (s *Service) afterCreate(ctx context.Context, b *domain.Booking) {
	if s.events != nil {
		if err := s.events.PublishJSON(ctx, mq.KeyBookingCreated, newBookingEvent(b, s.now())); err != nil {
			s.loggerf("level=warn msg=publish booking.created failed booking_id=%d err=%v", b.ID, err)
		}
	}
	if s.notifier != nil {
		details, err := s.bookings.GetDetails(ctx, b.ID)
		if err == nil {
			err = s.notifier.NotifyBookingCreated(ctx, details)
		}
		if err != nil {
			s.loggerf("level=warn msg=booking notification failed booking_id=%d err=%v", b.ID, err)
		}
	}
}

// Get returns the booking when actor owns it or may manage bookings.
func (s *Service) Get(ctx context.Context, bookingID int64, actor authz.Actor) (*domain.BookingDetails, error) {
	d, err := s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.Owns(d.Booking.UserID, authz.BookingsManage) {
		return nil, ErrForbidden
	}
	return d, nil
}

func (s *Service) ListMine(ctx context.Context, userID int64, q ListQuery) (*ListResult, error) {
	return s.list(ctx, userID, q)
}

func (s *Service) ListAll(ctx context.Context, q ListQuery) (*ListResult, error) {
	return s.list(ctx, 0, q)
}

func (s *Service) list(ctx context.Context, userID int64, q ListQuery) (*ListResult, error) {
	f := domain.BookingFilter{UserID: userID, Page: q.Page, Limit: q.Limit}
	if q.Status != "" {
		f.Status = domain.BookingStatus(strings.ToUpper(q.Status))
		if !f.Status.Valid() {
			return nil, ErrInvalidStatus
		}
	}
	switch strings.ToLower(q.Sort) {
	case "", "latest":
	case "oldest":
		f.Oldest = true
	default:
		return nil, &ValidationError{Fields: map[string]string{"sort": "oneof=latest oldest"}}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	rows, total, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResult{Bookings: rows, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

// Cancel lets the owner withdraw a booking that is still PENDING. Staff
// cancel any booking, their own included, through SetStatus.
func (s *Service) Cancel(ctx context.Context, bookingID int64, actor authz.Actor) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if actor.Can(authz.BookingsManage) {
		return s.SetStatus(ctx, bookingID, actor, string(domain.BookingCancelled))
	}
	if b.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	ok, err := s.bookings.CancelIfPending(ctx, bookingID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCancellable
	}

	metrics.RecordBookingCancellation()
	b.Status = domain.BookingCancelled
	s.publish(ctx, mq.KeyBookingCancelled, b)
	return s.bookings.GetByID(ctx, bookingID)
}

// SetStatus is the staff override of a booking's status. Putting an inactive
// booking back to PENDING or CONFIRMED needs a free place on its slot, so it
// runs under the same slot lock as Create.
func (s *Service) SetStatus(ctx context.Context, bookingID int64, actor authz.Actor, status string) (*domain.Booking, error) {
	if !actor.Can(authz.BookingsManage) {
		return nil, ErrForbidden
	}
	next := domain.BookingStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	unlockSlot := s.locks.Lock(fmt.Sprintf("slot:%d", current.SlotID))
	defer unlockSlot()
	unlock := s.locks.Lock(fmt.Sprintf("booking:%d", bookingID))
	defer unlock()

	if err := s.bookings.UpdateStatus(ctx, bookingID, next, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrSlotFull):
			s.loggerf("level=warn msg=booking status rejected booking_id=%d slot_id=%d status=%s reason=slot_full", bookingID, current.SlotID, next)
			return nil, ErrSlotFull
		}
		return nil, err
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.loggerf("level=info msg=booking status set booking_id=%d status=%s by=%d", bookingID, next, actor.UserID)
	if next == domain.BookingCancelled && current.Status != domain.BookingCancelled {
		metrics.RecordBookingCancellation()
		s.publish(ctx, mq.KeyBookingCancelled, b)
	}
	return b, nil
}

func (s *Service) Delete(ctx context.Context, bookingID int64, actor authz.Actor) error {
	if !actor.Can(authz.BookingsDelete) {
		return ErrForbidden
	}
	if err := s.bookings.Delete(ctx, bookingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.loggerf("level=info msg=booking deleted booking_id=%d by=%d", bookingID, actor.UserID)
	return nil
}

func (s *Service) publish(ctx context.Context, key string, b *domain.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(ctx, key, newBookingEvent(b, s.now())); err != nil {
		s.loggerf("level=warn msg=publish failed key=%s booking_id=%d err=%v", key, b.ID, err)
	}
}

// newReference builds JTA-<unix ms>-<6 upper-case hex chars>.
func newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%d-%s", referencePrefix, now.UnixMilli(), suffix)
}

func newEntryToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
