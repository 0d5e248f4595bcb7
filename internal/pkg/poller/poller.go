// Package poller drives a bounded status check loop for push payments.
package poller

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = time.Second
)

type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeTimedOut  Outcome = "TIMED_OUT"
)

// Snapshot is one observation of a payment.
type Snapshot struct {
	Status        string `json:"status"`
	ReceiptNumber string `json:"receiptNumber,omitempty"`
	BookingID     int64  `json:"bookingId,omitempty"`
	BookingStatus string `json:"bookingStatus,omitempty"`
}

func (s Snapshot) outcome() (Outcome, bool) {
	switch s.Status {
	case string(OutcomeCompleted):
		return OutcomeCompleted, true
	case string(OutcomeFailed):
		return OutcomeFailed, true
	}
	return "", false
}

type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

type FetcherFunc func(ctx context.Context) (Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context) (Snapshot, error) { return f(ctx) }

type Result struct {
	Outcome  Outcome
	Attempts int
	Last     Snapshot
	LastErr  error
}

type Poller struct {
	MaxAttempts int
	Interval    time.Duration
	// OnAttempt, if set, sees every fetch.
	OnAttempt func(attempt int, s Snapshot, err error)
}

func New(maxAttempts int, interval time.Duration) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval < 0 {
		interval = DefaultInterval
	}
	return &Poller{MaxAttempts: maxAttempts, Interval: interval}
}

// Poll fetches until the payment is COMPLETED or FAILED or the attempt
// budget runs out. Fetch errors use up an attempt. The only error returned
// is the context's, together with what was observed so far.
func (p *Poller) Poll(ctx context.Context, f Fetcher) (Result, error) {
	res := Result{Outcome: OutcomeTimedOut}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		snap, err := f.Fetch(ctx)
		res.Attempts = attempt
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, snap, err)
		}
		if err != nil {
			res.LastErr = err
		} else {
			res.Last = snap
			if out, done := snap.outcome(); done {
				res.Outcome = out
				return res, nil
			}
		}

		if attempt == p.MaxAttempts {
			break
		}
		if timer == nil {
			timer = time.NewTimer(p.Interval)
		} else {
			timer.Reset(p.Interval)
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-timer.C:
		}
	}
	return res, nil
}
