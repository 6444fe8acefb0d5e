package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds indexes AutoMigrate cannot express. The partial
// index keeps the expiration sweep fast as terminal rows accumulate.
func MigrateConstraints(db *gorm.DB) error {
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_pending_locked_until
		ON bookings (locked_until)
		WHERE status = 'PENDING_PAYMENT';
	`).Error
	if err != nil {
		return err
	}

	// Webhook lookups resolve the gateway reference against pending rows only
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_payment_pending
		ON bookings (payment_id)
		WHERE status = 'PENDING_PAYMENT';
	`).Error
	if err != nil {
		return err
	}

	return nil
}
