package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/internal/application"
	"github.com/AzizTN01/autorent-back/pkg/domain"
	"github.com/AzizTN01/autorent-back/pkg/response"
)

// RentalHandler handles HTTP requests for rental operations.
type RentalHandler struct {
	service *application.RentalService
}

// NewRentalHandler creates a new RentalHandler.
func NewRentalHandler(service *application.RentalService) *RentalHandler {
	return &RentalHandler{service: service}
}

// RegisterRoutes registers all rental routes on the given router group.
func (h *RentalHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/api/v1")

	rentals := v1.Group("/rentals")
	{
		rentals.POST("", h.CreateRental)
		rentals.GET("/availability", h.CheckAvailability)
		rentals.GET("/:id", h.GetRental)
		rentals.POST("/:id/status", h.TransitionStatus)
		rentals.POST("/:id/cancel", h.CancelRental)
		rentals.POST("/:id/payment", h.UpdatePayment)
		rentals.POST("/:id/reschedule", h.RescheduleRental)
		rentals.POST("/:id/link", h.LinkRental)
	}

	v1.GET("/cars/:id/rentals", h.ListCarRentals)
	v1.GET("/users/:id/rentals", h.ListUserRentals)
}

// CreateRental handles POST /api/v1/rentals.
func (h *RentalHandler) CreateRental(c *gin.Context) {
	var req application.CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateRental(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"message": "rental created successfully",
		"rental":  result.Rental,
	}
	if result.Warning != nil {
		body["warning"] = result.Warning
	}
	response.Created(c, body)
}

// GetRental handles GET /api/v1/rentals/:id.
func (h *RentalHandler) GetRental(c *gin.Context) {
	id, ok := parseID(c, "rental")
	if !ok {
		return
	}

	result, err := h.service.GetRental(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CheckAvailability handles GET /api/v1/rentals/availability?carId=&start=&end=.
func (h *RentalHandler) CheckAvailability(c *gin.Context) {
	carID, err := uuid.Parse(c.Query("carId"))
	if err != nil {
		response.BadRequest(c, "invalid car ID")
		return
	}
	start, end, ok := parseRange(c)
	if !ok {
		return
	}

	result, err := h.service.CheckAvailability(c.Request.Context(), carID, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListCarRentals handles GET /api/v1/cars/:id/rentals?start=&end=.
func (h *RentalHandler) ListCarRentals(c *gin.Context) {
	carID, ok := parseID(c, "car")
	if !ok {
		return
	}
	start, end, ok := parseRange(c)
	if !ok {
		return
	}

	result, err := h.service.ListCarRentals(c.Request.Context(), carID, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListUserRentals handles GET /api/v1/users/:id/rentals.
func (h *RentalHandler) ListUserRentals(c *gin.Context) {
	userID, ok := parseID(c, "user")
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := h.service.ListUserRentals(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// TransitionStatus handles POST /api/v1/rentals/:id/status.
func (h *RentalHandler) TransitionStatus(c *gin.Context) {
	id, ok := parseID(c, "rental")
	if !ok {
		return
	}

	var req application.TransitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.TransitionStatus(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelRental handles POST /api/v1/rentals/:id/cancel.
func (h *RentalHandler) CancelRental(c *gin.Context) {
	id, ok := parseID(c, "rental")
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.CancelRental(c.Request.Context(), id, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdatePayment handles POST /api/v1/rentals/:id/payment.
func (h *RentalHandler) UpdatePayment(c *gin.Context) {
	id, ok := parseID(c, "rental")
	if !ok {
		return
	}

	var req application.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdatePaymentStatus(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RescheduleRental handles POST /api/v1/rentals/:id/reschedule.
func (h *RentalHandler) RescheduleRental(c *gin.Context) {
	id, ok := parseID(c, "rental")
	if !ok {
		return
	}

	var req application.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RescheduleRental(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// LinkRental handles POST /api/v1/rentals/:id/link.
func (h *RentalHandler) LinkRental(c *gin.Context) {
	id, ok := parseID(c, "rental")
	if !ok {
		return
	}

	result, err := h.service.LinkRental(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parseID reads the :id path parameter, writing a 400 when it is not a UUID.
func parseID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := application.ParseDateTime(c.Query("start"))
	if err != nil {
		response.BadRequest(c, "start: "+err.Error())
		return time.Time{}, time.Time{}, false
	}
	end, err := application.ParseDateTime(c.Query("end"))
	if err != nil {
		response.BadRequest(c, "end: "+err.Error())
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if page > domain.MaxPage {
		page = domain.MaxPage
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
