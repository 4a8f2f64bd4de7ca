package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AzizTN01/autorent-back/internal/application"
	"github.com/AzizTN01/autorent-back/pkg/response"
)

// sweepBatch caps rentals moved by one manually triggered sweep.
const sweepBatch = 500

// AdminRentalHandler handles admin HTTP requests for rental management.
type AdminRentalHandler struct {
	service *application.RentalService
}

// NewAdminRentalHandler creates a new AdminRentalHandler.
func NewAdminRentalHandler(service *application.RentalService) *AdminRentalHandler {
	return &AdminRentalHandler{service: service}
}

// RegisterRoutes registers admin rental routes.
func (h *AdminRentalHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/api/v1/admin")
	{
		admin.GET("/rentals", h.ListRentals)
		admin.GET("/stats/rentals", h.RentalStats)
		admin.POST("/rentals/sweep", h.SweepLifecycle)
	}
}

// ListRentals handles GET /api/v1/admin/rentals.
func (h *AdminRentalHandler) ListRentals(c *gin.Context) {
	page, limit := parsePagination(c)

	rentals, total, err := h.service.ListAllRentals(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, rentals, total, page, limit)
}

// RentalStats handles GET /api/v1/admin/stats/rentals.
func (h *AdminRentalHandler) RentalStats(c *gin.Context) {
	stats, err := h.service.GetRentalStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// SweepLifecycle handles POST /api/v1/admin/rentals/sweep. It runs one
// lifecycle sweep immediately instead of waiting for the schedule.
func (h *AdminRentalHandler) SweepLifecycle(c *gin.Context) {
	result, err := h.service.AdvanceLifecycle(c.Request.Context(), time.Now().UTC(), sweepBatch)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
