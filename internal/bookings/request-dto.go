package bookings

type ContactInfo struct {
	Name  string `json:"name" binding:"required,min=2,max=100"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"omitempty,max=30"`
}

type CreateHoldRequest struct {
	TripID    string      `json:"trip_id" binding:"required,uuid"`
	SeatCodes []string    `json:"seat_codes" binding:"required,min=1,max=6,dive,seatcode"`
	Contact   ContactInfo `json:"contact" binding:"required"`

	// Populated from the auth context, never from the body.
	UserID *string `json:"-"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// WebhookPayload is the gateway's notification body. Verified against
// X-Signature before it is trusted.
type WebhookPayload struct {
	PaymentID string `json:"payment_id" binding:"required"`
	BookingID string `json:"booking_id" binding:"required,uuid"`
	Status    string `json:"status" binding:"required"`
	Reference string `json:"reference"`
}
