// Command reconcile settles push payments whose callback never arrived by
// asking the provider for their status.
package main

import (
	"context"
	"log"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/config"
	"github.com/nablus1/TurfArena-booking/internal/database"
	"github.com/nablus1/TurfArena-booking/internal/modules/payment"
	"github.com/nablus1/TurfArena-booking/internal/pkg/keylock"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mpesa"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mq"
	"github.com/nablus1/TurfArena-booking/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	gateway := mpesa.NewClient(mpesa.Config{
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		Passkey:        cfg.Mpesa.Passkey,
		Shortcode:      cfg.Mpesa.Shortcode,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Environment:    cfg.Mpesa.Environment,
		BaseURL:        cfg.Mpesa.BaseURL,
	}, nil)

	bookings := repository.NewBookingRepository(db)
	svc := payment.NewService(repository.NewPaymentRepository(db), bookings, gateway, keylock.New(), log.Printf)
	if cfg.AMQPURL != "" {
		if pub, err := mq.NewPublisher(cfg.AMQPURL, cfg.EventsExchange); err == nil {
			defer pub.Close()
			svc.SetEventPublisher(pub)
		} else {
			log.Printf("level=warn msg=event publishing disabled err=%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sum, err := svc.ReconcileStale(ctx, cfg.ReconcileAfter, cfg.ReconcileBatch)
	if err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}
	log.Printf("reconcile completed: checked=%d completed=%d failed=%d pending=%d errors=%d",
		sum.Checked, sum.Completed, sum.Failed, sum.Pending, sum.Errors)
}
