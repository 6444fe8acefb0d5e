package payments

import (
	"time"

	"github.com/google/uuid"
)

// Record statuses mirror the gateway's terminal states
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// PaymentRecord is the local ledger entry for a gateway payment. One row per
// gateway payment ID; webhook redeliveries update the same row.
type PaymentRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PaymentID string    `gorm:"uniqueIndex;not null" json:"payment_id"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"type:varchar(3)" json:"currency"`
	Status    string    `gorm:"type:varchar(20);default:'PENDING'" json:"status"`

	// Raw gateway status from the last webhook delivery, kept for audit
	GatewayStatus string     `gorm:"type:varchar(30)" json:"gateway_status,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for PaymentRecord
func (PaymentRecord) TableName() string {
	return "payment_records"
}
