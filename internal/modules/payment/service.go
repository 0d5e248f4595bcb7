package payment

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
	"github.com/nablus1/TurfArena-booking/internal/pkg/mpesa"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mq"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	sourceCallback  = "callback"
	sourceReconcile = "reconcile"

	pushDescription = "Turf booking"
)

type Service struct {
	payments paymentRepo
	bookings bookingReader
	gateway  Gateway
	locks    *keylock.Locker
	loggerf  func(format string, args ...interface{})
	tracer   trace.Tracer
	now      func() time.Time

	events      EventPublisher
	notifier    Notifier
	broadcaster Broadcaster
}

func NewService(payments paymentRepo, bookings bookingReader, gateway Gateway, locks *keylock.Locker, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		payments: payments,
		bookings: bookings,
		gateway:  gateway,
		locks:    locks,
		loggerf:  loggerf,
		tracer:   otel.Tracer("turfarena/payment"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// InitiatePush sends a payment prompt for a PENDING booking owned by actor
// and records the attempt. A booking keeps a single payment row; retries
// overwrite its correlation ids until it completes.
func (s *Service) InitiatePush(ctx context.Context, actor authz.Actor, req PushRequest) (_ *PushResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.initiate_push",
		trace.WithAttributes(attribute.Int64("booking.id", req.BookingID)))
	defer func() { endSpan(span, err) }()

	if req.BookingID <= 0 {
		return nil, fmt.Errorf("%w: bookingId is required", ErrValidation)
	}
	if !mpesa.ValidatePushPhone(req.PhoneNumber) {
		metrics.RecordPush("invalid_phone")
		return nil, ErrInvalidPhone
	}
	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		metrics.RecordPush("invalid_phone")
		return nil, ErrInvalidPhone
	}

	unlock := s.locks.Lock(fmt.Sprintf("booking:%d", req.BookingID))
	defer unlock()

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	existing, err := s.payments.GetByBookingID(ctx, booking.ID)
	switch {
	case err == nil && existing.Status == domain.PaymentCompleted:
		metrics.RecordPush("already_paid")
		return nil, ErrAlreadyPaid
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if booking.Status != domain.BookingPending {
		return nil, ErrBookingNotPending
	}

	res, err := s.gateway.Initiate(ctx, mpesa.PushRequest{
		Phone:       phone,
		Amount:      booking.TotalAmount,
		Reference:   booking.Reference,
		Description: pushDescription,
	})
	if err != nil {
		metrics.RecordPush("upstream_error")
		s.loggerf("level=error msg=stk push failed booking_id=%d err=%v", booking.ID, err)
		return nil, upstreamError(err)
	}

	p := &domain.Payment{
		BookingID:         booking.ID,
		UserID:            booking.UserID,
		Amount:            booking.TotalAmount,
		Method:            domain.PaymentMethodMpesa,
		PhoneNumber:       phone,
		MerchantRequestID: res.MerchantRequestID,
		CheckoutRequestID: res.CheckoutRequestID,
	}
	if err := s.payments.SaveAttempt(ctx, p); err != nil {
		if errors.Is(err, repository.ErrPaymentCompleted) {
			metrics.RecordPush("already_paid")
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("save payment attempt: %w", err)
	}

	metrics.RecordPush("sent")
	span.SetAttributes(attribute.String("mpesa.checkout_request_id", p.CheckoutRequestID))
	s.loggerf("level=info msg=stk push sent booking_id=%d payment_id=%d checkout_request_id=%s", booking.ID, p.ID, p.CheckoutRequestID)

	message := res.CustomerMessage
	if message == "" {
		message = "Payment prompt sent. Enter your M-Pesa PIN to complete."
	}
	return &PushResponse{
		CheckoutRequestID: p.CheckoutRequestID,
		Message:           message,
		Payment:           PaymentRef{ID: p.ID, Status: string(p.Status)},
	}, nil
}

// Status reports the stored state of a payment. It never calls the provider.
func (s *Service) Status(ctx context.Context, actor authz.Actor, checkoutRequestID string) (*StatusResponse, error) {
	p, err := s.payments.GetByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !actor.Owns(p.UserID, authz.BookingsManage) {
		return nil, ErrForbidden
	}

	b, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	out := statusOf(p, b)
	return &out, nil
}

// HandleCallback applies a provider result. Deliveries for the same checkout
// id are serialized and a payment that already settled is left as is, so
// redelivery is harmless.
func (s *Service) HandleCallback(ctx context.Context, cb *CallbackResult) (_ *CallbackOutcome, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.handle_callback", trace.WithAttributes(
		attribute.String("mpesa.checkout_request_id", cb.CheckoutRequestID),
		attribute.Int("mpesa.result_code", cb.ResultCode),
	))
	defer func() { endSpan(span, err) }()

	result := domain.PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		Success:           cb.Success(),
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		At:                s.now(),
	}
	if result.Success {
		result.ReceiptNumber = cb.Metadata.ReceiptNumber()
		result.PaidAmount = cb.Metadata.Amount()
		result.PayerPhone = cb.Metadata.PhoneNumber()
	}

	out, err := s.apply(ctx, result, sourceCallback)
	if err != nil {
		return nil, err
	}
	if out.Applied {
		metrics.RecordCallback("processed")
	} else {
		metrics.RecordCallback("duplicate")
		s.loggerf("level=info msg=duplicate callback ignored checkout_request_id=%s status=%s", cb.CheckoutRequestID, out.Payment.Status)
	}
	return out, nil
}

// Reconcile asks the provider about a payment that is still PROCESSING and
// applies a final answer the same way a callback would.
func (s *Service) Reconcile(ctx context.Context, checkoutRequestID string) (_ *ReconcileResult, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.reconcile",
		trace.WithAttributes(attribute.String("mpesa.checkout_request_id", checkoutRequestID)))
	defer func() { endSpan(span, err) }()

	p, err := s.payments.GetByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status.Terminal() {
		return &ReconcileResult{CheckoutRequestID: checkoutRequestID, Status: string(p.Status), ResultDesc: p.ResultDesc}, nil
	}

	ps, err := s.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return nil, upstreamError(err)
	}
	if ps.Pending {
		return &ReconcileResult{CheckoutRequestID: checkoutRequestID, Status: string(p.Status), Pending: true, ResultDesc: ps.ResultDesc}, nil
	}

	out, err := s.apply(ctx, domain.PaymentResult{
		CheckoutRequestID: checkoutRequestID,
		Success:           ps.Succeeded(),
		ResultCode:        ps.ResultCode,
		ResultDesc:        ps.ResultDesc,
		At:                s.now(),
	}, sourceReconcile)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{
		CheckoutRequestID: checkoutRequestID,
		Status:            string(out.Payment.Status),
		Applied:           out.Applied,
		ResultDesc:        out.Payment.ResultDesc,
	}, nil
}

// ReconcileStale reconciles up to limit payments that have been PROCESSING
// for longer than olderThan.
func (s *Service) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (ReconcileSummary, error) {
	var sum ReconcileSummary
	stale, err := s.payments.ListStaleProcessing(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return sum, err
	}

	for _, p := range stale {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Checked++
		res, err := s.Reconcile(ctx, p.CheckoutRequestID)
		if err != nil {
			sum.Errors++
			s.loggerf("level=warn msg=reconcile failed checkout_request_id=%s err=%v", p.CheckoutRequestID, err)
			continue
		}
		switch {
		case res.Pending:
			sum.Pending++
		case res.Status == string(domain.PaymentCompleted):
			sum.Completed++
		case res.Status == string(domain.PaymentFailed):
			sum.Failed++
		}
	}
	return sum, nil
}

func (s *Service) apply(ctx context.Context, result domain.PaymentResult, source string) (*CallbackOutcome, error) {
	unlock := s.locks.Lock("checkout:" + result.CheckoutRequestID)
	applied, err := s.payments.ApplyResult(ctx, result)
	unlock()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("apply payment result: %w", err)
	}

	if applied.Applied {
		s.settled(ctx, applied, source)
	}
	return &CallbackOutcome{Payment: applied.Payment, Applied: applied.Applied}, nil
}

// settled runs the side effects of a committed settlement. Failures here are
// logged and never undo the settlement.
func (s *Service) settled(ctx context.Context, applied *repository.AppliedResult, source string) {
	p := applied.Payment
	metrics.RecordSettlement(string(p.Status), source)
	s.loggerf("level=info msg=payment settled checkout_request_id=%s payment_id=%d booking_id=%d status=%s source=%s receipt=%s",
		p.CheckoutRequestID, p.ID, p.BookingID, p.Status, source, p.ReceiptNumber)

	if p.Status == domain.PaymentCompleted && !applied.BookingTransitioned {
		s.loggerf("level=warn msg=payment completed for booking that already left PENDING booking_id=%d checkout_request_id=%s", p.BookingID, p.CheckoutRequestID)
	}

	details, err := s.bookings.GetDetails(ctx, p.BookingID)
	if err != nil {
		s.loggerf("level=error msg=load booking after settlement failed booking_id=%d err=%v", p.BookingID, err)
	}

	if s.broadcaster != nil {
		var b *domain.Booking
		if details != nil {
			b = &details.Booking
		}
		s.broadcaster.Broadcast(p.CheckoutRequestID, statusOf(p, b))
	}

	if s.events != nil {
		key := mq.KeyPaymentCompleted
		if p.Status == domain.PaymentFailed {
			key = mq.KeyPaymentFailed
		}
		ev := paymentEvent{
			PaymentID:         p.ID,
			BookingID:         p.BookingID,
			CheckoutRequestID: p.CheckoutRequestID,
			Status:            string(p.Status),
			ReceiptNumber:     p.ReceiptNumber,
			Amount:            p.Amount,
			Source:            source,
			At:                s.now(),
		}
		if err := s.events.PublishJSON(ctx, key, ev); err != nil {
			s.loggerf("level=warn msg=publish %s failed payment_id=%d err=%v", key, p.ID, err)
		}
	}

	if s.notifier != nil && details != nil {
		if err := s.notifier.NotifyPaymentResult(ctx, details); err != nil {
			s.loggerf("level=warn msg=payment notification failed booking_id=%d err=%v", p.BookingID, err)
		}
	}
}

func upstreamError(err error) error {
	reason := "Payment service is unavailable, please try again"
	var merr *mpesa.Error
	if errors.As(err, &merr) && strings.TrimSpace(merr.Reason) != "" {
		reason = merr.Reason
	}
	return &UpstreamError{Reason: reason, Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
