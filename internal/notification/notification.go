// Package notification queues booking e-mails in Redis and delivers them
// from a background worker.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "notifications:email"
	failedQueueKey = "notifications:email:failed"
	maxTries       = 3
)

const (
	KindBookingCreated   = "booking_created"
	KindPaymentConfirmed = "payment_confirmed"
	KindPaymentFailed    = "payment_failed"
)

type Job struct {
	Kind    string    `json:"kind"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

type Service struct {
	redis      *redis.Client
	sender     Sender
	loggerf    func(format string, args ...interface{})
	retryDelay time.Duration
	popTimeout time.Duration
}

// NewService builds the notifier. With a nil redis client jobs are sent
// inline instead of queued.
func NewService(rdb *redis.Client, sender Sender, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		redis:      rdb,
		sender:     sender,
		loggerf:    loggerf,
		retryDelay: 5 * time.Second,
		popTimeout: 2 * time.Second,
	}
}

func (s *Service) Enqueue(ctx context.Context, job Job) error {
	if job.To == "" {
		return errors.New("notification without recipient")
	}
	if job.Created.IsZero() {
		job.Created = time.Now().UTC()
	}
	if s.redis == nil {
		return s.deliver(ctx, job)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		s.loggerf("level=error msg=failed to queue notification kind=%s to=%s err=%v", job.Kind, job.To, err)
		return err
	}
	s.loggerf("level=info msg=notification queued kind=%s to=%s", job.Kind, job.To)
	return nil
}

// Run pops and delivers jobs until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if s.redis == nil {
		return
	}
	s.loggerf("level=info msg=notification worker started")
	for {
		select {
		case <-ctx.Done():
			s.loggerf("level=info msg=notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) bool {
	result, err := s.redis.BRPop(ctx, s.popTimeout, queueKey).Result()
	if err != nil {
		return false
	}
	if n, err := s.redis.LLen(ctx, queueKey).Result(); err == nil {
		metrics.NotificationQueueLength.Set(float64(n))
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		s.loggerf("level=error msg=bad notification payload err=%v", err)
		return false
	}

	job.Tries++
	if err := s.deliver(ctx, job); err != nil {
		if job.Tries < maxTries {
			s.requeueLater(job)
		} else {
			s.saveFailed(ctx, job, err)
		}
		return false
	}
	return true
}

func (s *Service) deliver(ctx context.Context, job Job) error {
	if s.sender == nil {
		return errors.New("no notification sender configured")
	}
	if err := s.sender.Send(ctx, job); err != nil {
		metrics.RecordNotification(job.Kind, "failed")
		s.loggerf("level=error msg=notification delivery failed kind=%s to=%s attempt=%d err=%v", job.Kind, job.To, job.Tries, err)
		return err
	}
	metrics.RecordNotification(job.Kind, "sent")
	return nil
}

func (s *Service) requeueLater(job Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	go func() {
		time.Sleep(s.retryDelay)
		if err := s.redis.LPush(context.Background(), queueKey, string(data)).Err(); err != nil {
			s.loggerf("level=error msg=failed to requeue notification to=%s err=%v", job.To, err)
		}
	}()
}

func (s *Service) saveFailed(ctx context.Context, job Job, cause error) {
	data, _ := json.Marshal(map[string]interface{}{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now().UTC(),
	})
	if err := s.redis.LPush(ctx, failedQueueKey, string(data)).Err(); err != nil {
		s.loggerf("level=error msg=failed to park notification to=%s err=%v", job.To, err)
		return
	}
	s.loggerf("level=error msg=notification moved to failed queue to=%s tries=%d", job.To, job.Tries)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	if s.redis == nil {
		return 0
	}
	n, _ := s.redis.LLen(ctx, queueKey).Result()
	return n
}

func (s *Service) NotifyBookingCreated(ctx context.Context, d *domain.BookingDetails) error {
	body := fmt.Sprintf(`Hi %s,

Your booking %s for %s %s-%s is reserved.
Amount due: KES %.0f

Complete the M-Pesa payment to confirm it.

- Juja Turf Arena`, d.User.Name, d.Booking.Reference, d.Slot.Date, d.Slot.StartTime, d.Slot.EndTime, d.Booking.TotalAmount)

	return s.Enqueue(ctx, Job{
		Kind:    KindBookingCreated,
		To:      d.User.Email,
		Name:    d.User.Name,
		Subject: "Booking reserved - " + d.Booking.Reference,
		Body:    body,
	})
}

// NotifyPaymentResult sends the ticket on success and a failure notice
// otherwise.
func (s *Service) NotifyPaymentResult(ctx context.Context, d *domain.BookingDetails) error {
	if d.Payment == nil {
		return errors.New("booking has no payment")
	}
	if d.Payment.Status == domain.PaymentCompleted {
		body := fmt.Sprintf(`Hi %s,

Payment received. Your booking is confirmed!

Reference: %s
Date: %s
Time: %s-%s
Players: %d
M-Pesa receipt: %s

Show this entry code at the gate: %s

- Juja Turf Arena`, d.User.Name, d.Booking.Reference, d.Slot.Date, d.Slot.StartTime, d.Slot.EndTime,
			d.Booking.PlayerCount, d.Payment.ReceiptNumber, d.Booking.EntryToken)

		return s.Enqueue(ctx, Job{
			Kind:    KindPaymentConfirmed,
			To:      d.User.Email,
			Name:    d.User.Name,
			Subject: "Booking confirmed - " + d.Booking.Reference,
			Body:    body,
		})
	}

	reason := d.Payment.ResultDesc
	if reason == "" {
		reason = "the payment was not completed"
	}
	body := fmt.Sprintf(`Hi %s,

We could not confirm payment for booking %s (%s %s-%s): %s.
The booking has been released. You can book again at any time.

- Juja Turf Arena`, d.User.Name, d.Booking.Reference, d.Slot.Date, d.Slot.StartTime, d.Slot.EndTime, reason)

	return s.Enqueue(ctx, Job{
		Kind:    KindPaymentFailed,
		To:      d.User.Email,
		Name:    d.User.Name,
		Subject: "Payment not completed - " + d.Booking.Reference,
		Body:    body,
	})
}
