package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/metrics"
	"github.com/nablus1/TurfArena-booking/internal/pkg/keylock"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mq"
	"github.com/nablus1/TurfArena-booking/internal/repository"
)

type Service struct {
	bookings BookingRepository
	locks    *keylock.Locker
	events   EventPublisher
	loggerf  func(format string, args ...interface{})
	now      func() time.Time
}

func NewService(bookings BookingRepository, locks *keylock.Locker, loggerf func(format string, args ...interface{})) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		bookings: bookings,
		locks:    locks,
		loggerf:  loggerf,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

// Lookup resolves a scanned code, entry token first and booking reference
// second.
func (s *Service) Lookup(ctx context.Context, code string) (*TicketDetails, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}
	d, err := s.bookings.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTicket(d), nil
}

// Validate admits the booking at the gate. A ticket validates once.
func (s *Service) Validate(ctx context.Context, bookingID, validatorID int64, notes string) (*TicketDetails, error) {
	unlock := s.locks.Lock(fmt.Sprintf("booking:%d", bookingID))
	defer unlock()

	d, err := s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := admissible(d); err != nil {
		metrics.RecordTicketValidation(outcome(err))
		return nil, err
	}

	at := s.now()
	ok, err := s.bookings.MarkValidated(ctx, bookingID, validatorID, strings.TrimSpace(notes), at)
	if err != nil {
		return nil, fmt.Errorf("mark validated: %w", err)
	}
	if !ok {
		// state moved between the read and the conditional write
		if d, err = s.bookings.GetDetails(ctx, bookingID); err != nil {
			return nil, err
		}
		if err := admissible(d); err != nil {
			metrics.RecordTicketValidation(outcome(err))
			return nil, err
		}
		return nil, ErrAlreadyValidated
	}

	metrics.RecordTicketValidation("validated")
	s.loggerf("level=info msg=ticket validated booking_id=%d reference=%s validator_id=%d", bookingID, d.Booking.Reference, validatorID)

	if s.events != nil {
		ev := validatedEvent{BookingID: bookingID, Reference: d.Booking.Reference, ValidatorID: validatorID, At: at}
		if err := s.events.PublishJSON(ctx, mq.KeyTicketValidated, ev); err != nil {
			s.loggerf("level=warn msg=publish %s failed booking_id=%d err=%v", mq.KeyTicketValidated, bookingID, err)
		}
	}

	d, err = s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return toTicket(d), nil
}

func admissible(d *domain.BookingDetails) error {
	switch {
	case d.Booking.IsValidated:
		return ErrAlreadyValidated
	case d.Booking.Status != domain.BookingConfirmed:
		return ErrNotConfirmed
	case d.Payment == nil || d.Payment.Status != domain.PaymentCompleted:
		return ErrPaymentIncomplete
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyValidated):
		return "already_validated"
	case errors.Is(err, ErrNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, ErrPaymentIncomplete):
		return "payment_incomplete"
	}
	return "error"
}
