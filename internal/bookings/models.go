package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Booking defines the main booking structure. The row is the single source of
// truth for status; seat locks in Redis are a derived index.
type Booking struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Reference   string     `gorm:"unique;not null" json:"reference"`
	TripID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"trip_id"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"` // nil for guest checkout
	Status      Status     `gorm:"type:varchar(20);check:status IN ('PENDING_PAYMENT', 'CONFIRMED', 'CANCELLED', 'EXPIRED');default:'PENDING_PAYMENT';index" json:"status"`
	LockedUntil time.Time  `gorm:"index" json:"locked_until"`

	// Contact details for ticket delivery
	ContactName  string `gorm:"type:varchar(100);not null" json:"contact_name"`
	ContactEmail string `gorm:"type:varchar(255);not null" json:"contact_email"`
	ContactPhone string `gorm:"type:varchar(30)" json:"contact_phone,omitempty"`

	// Pricing in minor currency units
	Subtotal   int64  `gorm:"not null" json:"subtotal"`
	ServiceFee int64  `gorm:"not null" json:"service_fee"`
	Total      int64  `gorm:"not null" json:"total"`
	Currency   string `gorm:"type:varchar(3);default:'USD'" json:"currency"`

	// Payment tracking
	PaymentID     string     `gorm:"index" json:"payment_id,omitempty"`
	PaymentMethod string     `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	PaymentStatus string     `gorm:"type:varchar(20)" json:"payment_status,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`

	// Cancellation details (present only if cancelled)
	CancelReason string     `json:"cancel_reason,omitempty"`
	RefundAmount *int64     `json:"refund_amount,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Seats []BookingSeat `json:"seats,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// BookingSeat defines one reserved seat on the trip
type BookingSeat struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booking_seat" json:"booking_id"`
	SeatCode  string    `gorm:"type:varchar(5);not null;uniqueIndex:idx_booking_seat" json:"seat_code"`
	Fare      int64     `gorm:"not null" json:"fare"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TableName sets the table name for BookingSeat
func (BookingSeat) TableName() string {
	return "booking_seats"
}

// SeatCodes returns the seat codes of the booking in stored order
func (b *Booking) SeatCodes() []string {
	codes := make([]string, 0, len(b.Seats))
	for _, seat := range b.Seats {
		codes = append(codes, seat.SeatCode)
	}
	return codes
}

// HoldExpired reports whether the payment window has passed. Only meaningful
// while the booking is PENDING_PAYMENT.
func (b *Booking) HoldExpired(now time.Time) bool {
	return now.After(b.LockedUntil)
}

// IsConfirmed checks whether the booking is confirmed
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// IsCancelled checks whether the booking is cancelled
func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}
