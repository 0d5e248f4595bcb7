package ticket

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/nablus1/TurfArena-booking/internal/middleware"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/response"
	"github.com/nablus1/TurfArena-booking/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	tickets := protected.Group("/tickets", middleware.RequirePermission(authz.TicketsValidate))
	tickets.GET("/lookup", h.Lookup)
	tickets.POST("/validate/:bookingId", h.Validate)
}

// Lookup resolves an entry token or booking reference.
// @Summary		Look up a ticket
// @Tags		Tickets
// @Param		code	query	string	true	"entry token or booking reference"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/tickets/lookup [GET]
func (h *Handler) Lookup(c *gin.Context) {
	t, err := h.service.Lookup(c.Request.Context(), c.Query("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ticket": t})
}

// Validate admits a booking at the gate.
// @Summary		Validate a ticket
// @Tags		Tickets
// @Param		bookingId	path	int	true	"booking id"
// @Param		request	body	ValidateRequest	false	"notes"
// @Success		200	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/tickets/validate/{bookingId} [POST]
func (h *Handler) Validate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("bookingId"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking id")
		return
	}
	var req ValidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	if fields := validator.Validate(req); fields != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", fields)
		return
	}

	t, err := h.service.Validate(c.Request.Context(), id, middleware.Actor(c).UserID, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ticket": t, "message": "Ticket validated"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "TICKET_NOT_FOUND", "No booking matches this code")
	case errors.Is(err, ErrAlreadyValidated):
		response.Error(c, http.StatusConflict, "ALREADY_VALIDATED", "This ticket has already been used")
	case errors.Is(err, ErrNotConfirmed):
		response.Error(c, http.StatusConflict, "NOT_CONFIRMED", "Booking is not confirmed")
	case errors.Is(err, ErrPaymentIncomplete):
		response.Error(c, http.StatusConflict, "PAYMENT_INCOMPLETE", "Payment has not been completed")
	default:
		log.Printf("level=error msg=ticket request failed path=%s err=%v", c.FullPath(), err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
