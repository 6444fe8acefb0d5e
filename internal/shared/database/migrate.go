package database

import (
	"tripgo/internal/bookings"
	"tripgo/internal/payments"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&bookings.Booking{},
		&bookings.BookingSeat{},
		&payments.PaymentRecord{},
	)
}
