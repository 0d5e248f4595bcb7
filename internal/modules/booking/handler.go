package booking

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/nablus1/TurfArena-booking/internal/middleware"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.POST("/bookings", h.CreateBooking)
	protected.GET("/bookings", h.ListMine)
	protected.GET("/bookings/:id", h.GetBooking)
	protected.POST("/bookings/:id/cancel", h.CancelBooking)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/bookings", middleware.RequirePermission(authz.BookingsManage), h.ListAll)
	admin.PATCH("/bookings/:id", middleware.RequirePermission(authz.BookingsManage), h.UpdateStatus)
	admin.DELETE("/bookings/:id", middleware.RequirePermission(authz.BookingsDelete), h.DeleteBooking)
}

// CreateBooking reserves a slot.
// @Summary		Book a slot
// @Tags		Bookings
// @Param		request	body	CreateBookingRequest	true	"slotId, playerCount (1-22), notes"
// @Success		201	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/bookings [POST]
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	b, err := h.service.Create(c.Request.Context(), c.GetInt64("user_id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

func (h *Handler) ListMine(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	res, err := h.service.ListMine(c.Request.Context(), c.GetInt64("user_id"), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, res)
}

func (h *Handler) ListAll(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	res, err := h.service.ListAll(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, res)
}

func writeList(c *gin.Context, res *ListResult) {
	response.Success(c, http.StatusOK, gin.H{
		"bookings":   res.Bookings,
		"pagination": response.NewPage(res.Page, res.Limit, res.Total),
	})
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	d, err := h.service.Get(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, d)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.Cancel(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	b, err := h.service.SetStatus(c.Request.Context(), id, middleware.Actor(c), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, middleware.Actor(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Booking deleted"})
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request", verr.Fields)
	case errors.Is(err, ErrInvalidStatus):
		response.Error(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown booking status")
	case errors.Is(err, ErrSlotNotFound):
		response.Error(c, http.StatusNotFound, "SLOT_NOT_FOUND", "Slot not found")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrSlotUnavailable):
		response.Error(c, http.StatusConflict, "SLOT_UNAVAILABLE", "This slot is not open for booking")
	case errors.Is(err, ErrSlotFull):
		response.Error(c, http.StatusConflict, "SLOT_FULL", "This slot is fully booked")
	case errors.Is(err, ErrNotCancellable):
		response.Error(c, http.StatusForbidden, "BOOKING_NOT_PENDING", "Only pending bookings can be cancelled")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You don't have access to this booking")
	default:
		log.Printf("level=error msg=booking request failed path=%s user_id=%d err=%v", c.FullPath(), c.GetInt64("user_id"), err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
