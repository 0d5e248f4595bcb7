package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turfarena_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_bookings_total",
			Help: "Booking creation attempts by result",
		},
		[]string{"result"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turfarena_booking_cancellations_total",
			Help: "Total number of owner booking cancellations",
		},
	)

	PaymentPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_payment_pushes_total",
			Help: "STK push initiations by result",
		},
		[]string{"result"},
	)

	PaymentCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_payment_callbacks_total",
			Help: "Payment callbacks by outcome",
		},
		[]string{"outcome"},
	)

	PaymentsSettledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_payments_settled_total",
			Help: "Payments that reached a terminal status, by status and source",
		},
		[]string{"status", "source"},
	)

	TicketValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_ticket_validations_total",
			Help: "Ticket validation attempts by result",
		},
		[]string{"result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turfarena_notifications_total",
			Help: "Notification deliveries by type and status",
		},
		[]string{"type", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turfarena_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	PaymentStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turfarena_payment_streams_active",
			Help: "Open payment status websocket connections",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(result string) {
	BookingsTotal.WithLabelValues(result).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordPush(result string) {
	PaymentPushesTotal.WithLabelValues(result).Inc()
}

func RecordCallback(outcome string) {
	PaymentCallbacksTotal.WithLabelValues(outcome).Inc()
}

func RecordSettlement(status, source string) {
	PaymentsSettledTotal.WithLabelValues(status, source).Inc()
}

func RecordTicketValidation(result string) {
	TicketValidationsTotal.WithLabelValues(result).Inc()
}

func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}
