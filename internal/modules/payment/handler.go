package payment

import (
	"crypto/subtle"
	"errors"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/nablus1/TurfArena-booking/internal/metrics"
	"github.com/nablus1/TurfArena-booking/internal/middleware"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 64 << 10

// CallbackAuth restricts who may deliver payment callbacks. Empty fields
// disable the matching check.
type CallbackAuth struct {
	Token    string
	Networks []*net.IPNet
}

type Handler struct {
	service *Service
	auth    CallbackAuth
}

func NewHandler(service *Service, auth CallbackAuth) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup, limit gin.HandlerFunc) {
	protected.POST("/payments/push", limit, h.Push)
	protected.GET("/payments/status/:checkoutRequestId", h.Status)
}

func (h *Handler) RegisterWebhookRoutes(v1 *gin.RouterGroup, limit gin.HandlerFunc) {
	v1.POST("/webhook/payment-callback", limit, h.Callback)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/payments/:checkoutRequestId/reconcile", middleware.RequirePermission(authz.PaymentsReconcile), h.Reconcile)
}

// Push sends an M-Pesa STK prompt for a pending booking.
// @Summary		Start M-Pesa payment
// @Tags		Payments
// @Param		request	body	PushRequest	true	"bookingId, phoneNumber"
// @Success		200	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Failure		502	{object}	map[string]interface{}
// @Router		/payments/push [POST]
func (h *Handler) Push(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	out, err := h.service.InitiatePush(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) Status(c *gin.Context) {
	out, err := h.service.Status(c.Request.Context(), middleware.Actor(c), c.Param("checkoutRequestId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) Reconcile(c *gin.Context) {
	out, err := h.service.Reconcile(c.Request.Context(), c.Param("checkoutRequestId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// Callback receives the provider's result notification. The provider always
// gets HTTP 200; resultCode 1 marks a delivery that was not applied.
func (h *Handler) Callback(c *gin.Context) {
	if !h.callbackAllowed(c) {
		metrics.RecordCallback("unauthorized")
		log.Printf("level=warn msg=payment callback rejected reason=unauthorized client_ip=%s", c.ClientIP())
		c.JSON(http.StatusOK, rejectAck("Unauthorized"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		metrics.RecordCallback("malformed")
		c.JSON(http.StatusOK, rejectAck("Unreadable body"))
		return
	}
	cb, err := ParseCallback(body)
	if err != nil {
		metrics.RecordCallback("malformed")
		log.Printf("level=warn msg=payment callback rejected reason=malformed err=%v", err)
		c.JSON(http.StatusOK, rejectAck("Malformed callback"))
		return
	}

	if _, err := h.service.HandleCallback(c.Request.Context(), cb); err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			metrics.RecordCallback("unknown")
			log.Printf("level=warn msg=payment callback for unknown checkout checkout_request_id=%s", cb.CheckoutRequestID)
			c.JSON(http.StatusOK, rejectAck("Unknown CheckoutRequestID"))
			return
		}
		metrics.RecordCallback("error")
		log.Printf("level=error msg=payment callback failed checkout_request_id=%s err=%v", cb.CheckoutRequestID, err)
		c.JSON(http.StatusOK, rejectAck("Processing error"))
		return
	}
	c.JSON(http.StatusOK, acceptAck())
}

func (h *Handler) callbackAllowed(c *gin.Context) bool {
	if h.auth.Token != "" {
		got := c.Query("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.auth.Token)) != 1 {
			return false
		}
	}
	if len(h.auth.Networks) > 0 {
		ip := net.ParseIP(c.ClientIP())
		if ip == nil {
			return false
		}
		for _, n := range h.auth.Networks {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}
	return true
}

func writeServiceError(c *gin.Context, err error) {
	var uerr *UpstreamError
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrInvalidPhone):
		response.Error(c, http.StatusBadRequest, "INVALID_PHONE", "Use a Safaricom number like 0712345678 or 254712345678")
	case errors.Is(err, ErrAlreadyPaid):
		response.Error(c, http.StatusBadRequest, "ALREADY_PAID", "This booking has already been paid")
	case errors.Is(err, ErrBookingNotFound):
		response.Error(c, http.StatusNotFound, "BOOKING_NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrPaymentNotFound):
		response.Error(c, http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You don't have access to this payment")
	case errors.Is(err, ErrBookingNotPending):
		response.Error(c, http.StatusConflict, "BOOKING_NOT_PENDING", "This booking is no longer awaiting payment")
	case errors.As(err, &uerr):
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", uerr.Reason)
	default:
		log.Printf("level=error msg=payment request failed path=%s user_id=%d err=%v", c.FullPath(), c.GetInt64("user_id"), err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
