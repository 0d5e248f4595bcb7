package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/config"
	"github.com/nablus1/TurfArena-booking/internal/database"
	"github.com/nablus1/TurfArena-booking/internal/modules/payment"
	"github.com/nablus1/TurfArena-booking/internal/notification"
	jwtsvc "github.com/nablus1/TurfArena-booking/internal/pkg/jwt"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mpesa"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mq"
	"github.com/nablus1/TurfArena-booking/internal/pkg/obs"
	"github.com/nablus1/TurfArena-booking/internal/pkg/poller"
	"github.com/nablus1/TurfArena-booking/internal/repository"
	"github.com/nablus1/TurfArena-booking/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, "turfarena-api", cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	networks, err := cfg.CallbackNetworks()
	if err != nil {
		log.Fatal(err)
	}

	opts := server.Options{
		DB:  db,
		JWT: jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL),
		Gateway: mpesa.NewClient(mpesa.Config{
			ConsumerKey:    cfg.Mpesa.ConsumerKey,
			ConsumerSecret: cfg.Mpesa.ConsumerSecret,
			Passkey:        cfg.Mpesa.Passkey,
			Shortcode:      cfg.Mpesa.Shortcode,
			CallbackURL:    cfg.Mpesa.CallbackURL,
			Environment:    cfg.Mpesa.Environment,
			BaseURL:        cfg.Mpesa.BaseURL,
		}, nil),
		Poller:         poller.New(cfg.PollMaxAttempts, cfg.PollInterval),
		CallbackAuth:   payment.CallbackAuth{Token: cfg.Mpesa.CallbackToken, Networks: networks},
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AccessLog:      true,
		Logf:           log.Printf,
	}

	if cfg.AMQPURL != "" {
		pub, err := mq.NewPublisher(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			log.Printf("level=warn msg=event publishing disabled err=%v", err)
		} else {
			defer pub.Close()
			opts.Events = pub
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("level=warn msg=redis unreachable, sending emails inline err=%v", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}
	var sender notification.Sender = notification.NewLogSender(log.Printf)
	if cfg.SMTPHost != "" {
		sender = notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailFromName)
	}
	notifier := notification.NewService(rdb, sender, log.Printf)
	opts.Notifier = notifier
	if rdb != nil {
		go notifier.Run(ctx)
	}

	router, _ := server.NewRouter(opts)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("level=info msg=listening port=%s env=%s", cfg.Port, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Printf("level=info msg=shutting down signal=%s", s)
	case err := <-serverErr:
		log.Printf("level=error msg=server failed err=%v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error msg=shutdown failed err=%v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("level=warn msg=tracer shutdown failed err=%v", err)
	}
	log.Println("server stopped")
}
