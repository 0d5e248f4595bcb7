// Package server assembles the HTTP surface from the feature modules.
package server

import (
	"context"
	"log"
	"net/http"

	"github.com/nablus1/TurfArena-booking/internal/middleware"
	"github.com/nablus1/TurfArena-booking/internal/modules/admin"
	"github.com/nablus1/TurfArena-booking/internal/modules/auth"
	"github.com/nablus1/TurfArena-booking/internal/modules/booking"
	"github.com/nablus1/TurfArena-booking/internal/modules/payment"
	"github.com/nablus1/TurfArena-booking/internal/modules/slot"
	"github.com/nablus1/TurfArena-booking/internal/modules/ticket"
	"github.com/nablus1/TurfArena-booking/internal/notification"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/jwt"
	"github.com/nablus1/TurfArena-booking/internal/pkg/keylock"
	"github.com/nablus1/TurfArena-booking/internal/pkg/poller"
	"github.com/nablus1/TurfArena-booking/internal/pkg/response"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// EventPublisher receives domain events. *mq.Publisher satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Options struct {
	DB      *gorm.DB
	JWT     *jwt.Service
	Gateway payment.Gateway

	// Optional collaborators; nil disables them.
	Events   EventPublisher
	Notifier *notification.Service
	Poller   *poller.Poller

	CallbackAuth   payment.CallbackAuth
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	// AccessLog adds gin's request logger.
	AccessLog bool
	Logf      func(format string, args ...interface{})
}

// Services exposes the wired services for callers that drive them outside
// HTTP, such as the reconciliation command.
type Services struct {
	Auth    *auth.Service
	Slots   *slot.Service
	Booking *booking.Service
	Payment *payment.Service
	Tickets *ticket.Service
	Admin   *admin.Service
	Hub     *payment.Hub
}

func NewServices(opts Options) *Services {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	locks := keylock.New()

	userRepo := repository.NewUserRepository(opts.DB)
	slotRepo := repository.NewSlotRepository(opts.DB)
	bookingRepo := repository.NewBookingRepository(opts.DB)
	paymentRepo := repository.NewPaymentRepository(opts.DB)

	bookingService := booking.NewService(bookingRepo, locks)
	bookingService.SetLogger(logf)

	hub := payment.NewHub()
	paymentService := payment.NewService(paymentRepo, bookingRepo, opts.Gateway, locks, logf)
	paymentService.SetBroadcaster(hub)

	ticketService := ticket.NewService(bookingRepo, locks, logf)

	if opts.Events != nil {
		bookingService.SetEventPublisher(opts.Events)
		paymentService.SetEventPublisher(opts.Events)
		ticketService.SetEventPublisher(opts.Events)
	}
	if opts.Notifier != nil {
		bookingService.SetNotifier(opts.Notifier)
		paymentService.SetNotifier(opts.Notifier)
	}

	return &Services{
		Auth:    auth.NewService(userRepo, opts.JWT),
		Slots:   slot.NewService(slotRepo),
		Booking: bookingService,
		Payment: paymentService,
		Tickets: ticketService,
		Admin:   admin.NewService(bookingRepo),
		Hub:     hub,
	}
}

func NewRouter(opts Options) (*gin.Engine, *Services) {
	svc := NewServices(opts)

	r := gin.New()
	if opts.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(middleware.Metrics())

	r.GET("/health", health(opts.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limit := middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst)

	authHandler := auth.NewHandler(svc.Auth)
	slotHandler := slot.NewHandler(svc.Slots)
	bookingHandler := booking.NewHandler(svc.Booking)
	paymentHandler := payment.NewHandler(svc.Payment, opts.CallbackAuth)
	wsHandler := payment.NewWSHandler(svc.Hub, svc.Payment, opts.JWT, opts.Poller)
	ticketHandler := ticket.NewHandler(svc.Tickets)
	adminHandler := admin.NewHandler(svc.Admin)

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1, limit)
		slotHandler.RegisterPublicRoutes(v1)
		paymentHandler.RegisterWebhookRoutes(v1, limit)
		// websocket clients authenticate with ?token=
		v1.GET("/ws/payments/:checkoutRequestId", wsHandler.Stream)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(opts.JWT))
		{
			authHandler.RegisterProtectedRoutes(protected)
			bookingHandler.RegisterRoutes(protected)
			paymentHandler.RegisterProtectedRoutes(protected, limit)
			ticketHandler.RegisterRoutes(protected)

			adminGroup := protected.Group("/admin")
			bookingHandler.RegisterAdminRoutes(adminGroup)
			paymentHandler.RegisterAdminRoutes(adminGroup)
			adminHandler.RegisterRoutes(adminGroup)
			slotHandler.RegisterAdminRoutes(adminGroup.Group("", middleware.RequirePermission(authz.SlotsManage)))
		}
	}

	return r, svc
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is unreachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
