package bookings

import "time"

type HoldResponse struct {
	BookingID   string         `json:"booking_id"`
	Reference   string         `json:"reference"`
	Status      string         `json:"status"`
	LockedUntil time.Time      `json:"locked_until"`
	Seats       []SeatInfo     `json:"seats"`
	Pricing     PricingInfo    `json:"pricing"`
	Payment     PaymentSummary `json:"payment"`
}

type BookingResponse struct {
	BookingID    string      `json:"booking_id"`
	Reference    string      `json:"reference"`
	TripID       string      `json:"trip_id"`
	Status       string      `json:"status"`
	LockedUntil  *time.Time  `json:"locked_until,omitempty"`
	Seats        []SeatInfo  `json:"seats"`
	Pricing      PricingInfo `json:"pricing"`
	ContactName  string      `json:"contact_name"`
	ContactEmail string      `json:"contact_email"`
	PaidAt       *time.Time  `json:"paid_at,omitempty"`
	CancelReason string      `json:"cancel_reason,omitempty"`
	RefundAmount *int64      `json:"refund_amount,omitempty"`
	CancelledAt  *time.Time  `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type SeatInfo struct {
	SeatCode string `json:"seat_code"`
	Fare     int64  `json:"fare"`
}

type PricingInfo struct {
	Subtotal   int64  `json:"subtotal"`
	ServiceFee int64  `json:"service_fee"`
	Total      int64  `json:"total"`
	Currency   string `json:"currency"`
}

type PaymentSummary struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

func newHoldResponse(b *Booking, redirectURL string) *HoldResponse {
	return &HoldResponse{
		BookingID:   b.ID.String(),
		Reference:   b.Reference,
		Status:      b.Status.String(),
		LockedUntil: b.LockedUntil,
		Seats:       seatInfos(b),
		Pricing:     pricingInfo(b),
		Payment: PaymentSummary{
			PaymentID:   b.PaymentID,
			RedirectURL: redirectURL,
		},
	}
}

func NewBookingResponse(b *Booking) *BookingResponse {
	resp := &BookingResponse{
		BookingID:    b.ID.String(),
		Reference:    b.Reference,
		TripID:       b.TripID.String(),
		Status:       b.Status.String(),
		Seats:        seatInfos(b),
		Pricing:      pricingInfo(b),
		ContactName:  b.ContactName,
		ContactEmail: b.ContactEmail,
		PaidAt:       b.PaidAt,
		CancelReason: b.CancelReason,
		RefundAmount: b.RefundAmount,
		CancelledAt:  b.CancelledAt,
		CreatedAt:    b.CreatedAt,
	}
	if b.Status == StatusPendingPayment {
		lockedUntil := b.LockedUntil
		resp.LockedUntil = &lockedUntil
	}
	return resp
}

func seatInfos(b *Booking) []SeatInfo {
	seats := make([]SeatInfo, 0, len(b.Seats))
	for _, seat := range b.Seats {
		seats = append(seats, SeatInfo{SeatCode: seat.SeatCode, Fare: seat.Fare})
	}
	return seats
}

func pricingInfo(b *Booking) PricingInfo {
	return PricingInfo{
		Subtotal:   b.Subtotal,
		ServiceFee: b.ServiceFee,
		Total:      b.Total,
		Currency:   b.Currency,
	}
}
