package payments

import (
	"errors"
	"net/http"

	"tripgo/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Controller exposes read access to the payment ledger for support staff.
type Controller struct {
	records Repository
}

func NewController(records Repository) *Controller {
	return &Controller{records: records}
}

// ListByBooking handles GET /api/v1/admin/payments/booking/:id
func (c *Controller) ListByBooking(ctx *gin.Context) {
	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	records, err := c.records.GetByBookingID(ctx.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, ErrRecordUnavailable) {
			response.Error(ctx, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
			return
		}
		response.Error(ctx, http.StatusInternalServerError, "Failed to get payment records", nil)
		return
	}

	response.Success(ctx, http.StatusOK, "Payment records retrieved successfully", gin.H{
		"booking_id": bookingID.String(),
		"payments":   records,
		"count":      len(records),
	})
}
