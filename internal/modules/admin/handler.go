package admin

import (
	"log"
	"net/http"

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

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/analytics", middleware.RequirePermission(authz.AnalyticsView), h.GetAnalytics)
}

// GetAnalytics returns booking and revenue totals.
// @Summary		Dashboard analytics
// @Tags		Admin
// @Security	BearerAuth
// @Success		200	{object}	AnalyticsResponse
// @Failure		403	{object}	map[string]interface{}
// @Router		/admin/analytics [GET]
func (h *Handler) GetAnalytics(c *gin.Context) {
	stats, err := h.service.Analytics(c.Request.Context())
	if err != nil {
		log.Printf("level=error msg=analytics failed err=%v", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	response.Success(c, http.StatusOK, stats)
}
