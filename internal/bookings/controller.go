package bookings

import (
	"errors"
	"net/http"
	"strconv"

	"tripgo/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateHold handles POST /api/v1/bookings/hold
func (c *Controller) CreateHold(ctx *gin.Context) {
	var req CreateHoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	// Authenticated users get the hold attached to their account; guests check
	// out with contact details only.
	if userID, ok := userIDFromContext(ctx); ok {
		idStr := userID.String()
		req.UserID = &idStr
	}

	hold, err := c.service.CreateHold(ctx.Request.Context(), req)
	if err != nil {
		c.respondServiceError(ctx, err, "Failed to create hold")
		return
	}

	response.Success(ctx, http.StatusCreated, "Seats held successfully", hold)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), bookingID)
	if err != nil {
		c.respondServiceError(ctx, err, "Failed to get booking")
		return
	}

	if !c.canAccess(ctx, booking) {
		response.Error(ctx, http.StatusForbidden, "Access denied", nil)
		return
	}

	response.Success(ctx, http.StatusOK, "Booking retrieved successfully", NewBookingResponse(booking))
}

// GetBookingByReference handles GET /api/v1/bookings/reference/:reference
func (c *Controller) GetBookingByReference(ctx *gin.Context) {
	reference := ctx.Param("reference")
	if reference == "" {
		response.Error(ctx, http.StatusBadRequest, "Booking reference is required", nil)
		return
	}

	booking, err := c.service.GetBookingByReference(ctx.Request.Context(), reference)
	if err != nil {
		c.respondServiceError(ctx, err, "Failed to get booking")
		return
	}

	if !c.canAccess(ctx, booking) {
		response.Error(ctx, http.StatusForbidden, "Access denied", nil)
		return
	}

	response.Success(ctx, http.StatusOK, "Booking retrieved successfully", NewBookingResponse(booking))
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	var req CancelBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(ctx, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled_by_customer"
	}

	actor := actorFromContext(ctx)
	booking, err := c.service.Cancel(ctx.Request.Context(), bookingID, actor, reason)
	if err != nil {
		c.respondServiceError(ctx, err, "Failed to cancel booking")
		return
	}

	response.Success(ctx, http.StatusOK, "Booking cancelled successfully", NewBookingResponse(booking))
}

// ExtendHold handles POST /api/v1/bookings/:id/extend
func (c *Controller) ExtendHold(ctx *gin.Context) {
	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	actor := actorFromContext(ctx)
	booking, err := c.service.ExtendHold(ctx.Request.Context(), bookingID, actor)
	if err != nil {
		c.respondServiceError(ctx, err, "Failed to extend hold")
		return
	}

	response.Success(ctx, http.StatusOK, "Hold extended successfully", NewBookingResponse(booking))
}

// GetUserBookings handles GET /api/v1/users/bookings
func (c *Controller) GetUserBookings(ctx *gin.Context) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		response.Error(ctx, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if err != nil || limit < 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	bookings, err := c.service.GetUserBookings(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		c.respondServiceError(ctx, err, "Failed to get user bookings")
		return
	}

	responses := make([]*BookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, NewBookingResponse(&bookings[i]))
	}

	response.Success(ctx, http.StatusOK, "Bookings retrieved successfully", gin.H{
		"bookings": responses,
		"count":    len(responses),
		"limit":    limit,
		"offset":   offset,
	})
}

// respondServiceError maps booking errors to HTTP status codes
func (c *Controller) respondServiceError(ctx *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(ctx, http.StatusBadRequest, message, err.Error())
	case errors.Is(err, ErrSeatUnavailable):
		response.Error(ctx, http.StatusConflict, "One or more seats are no longer available", err.Error())
	case errors.Is(err, ErrHoldExpired):
		response.Error(ctx, http.StatusConflict, "Payment window has expired", err.Error())
	case errors.Is(err, ErrAlreadyProcessed):
		response.Error(ctx, http.StatusConflict, "Booking was already processed", err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(ctx, http.StatusNotFound, "Booking not found", nil)
	case errors.Is(err, ErrUnauthorized):
		response.Error(ctx, http.StatusForbidden, "Access denied", nil)
	case errors.Is(err, ErrRepositoryUnavailable):
		response.Error(ctx, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
	default:
		response.Error(ctx, http.StatusInternalServerError, message, err.Error())
	}
}

// canAccess allows the owner and admins; guest bookings (no user) are
// addressable by anyone who knows the ID or reference.
func (c *Controller) canAccess(ctx *gin.Context, booking *Booking) bool {
	if booking.UserID == nil {
		return true
	}
	actor := actorFromContext(ctx)
	if actor.IsAdmin() {
		return true
	}
	return actor.UserID != nil && *actor.UserID == *booking.UserID
}

func userIDFromContext(ctx *gin.Context) (uuid.UUID, bool) {
	userIDInterface, exists := ctx.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	userIDStr, ok := userIDInterface.(string)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func actorFromContext(ctx *gin.Context) Actor {
	actor := Actor{}
	if userID, ok := userIDFromContext(ctx); ok {
		actor.UserID = &userID
	}
	if roleInterface, exists := ctx.Get("user_role"); exists {
		if role, ok := roleInterface.(string); ok {
			actor.Role = role
		}
	}
	return actor
}
