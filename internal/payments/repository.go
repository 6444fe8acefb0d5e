package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordUnavailable means the payment ledger could not be read or written.
var ErrRecordUnavailable = errors.New("payment record store unavailable")

type Repository interface {
	Upsert(ctx context.Context, record *PaymentRecord) error
	GetByPaymentID(ctx context.Context, paymentID string) (*PaymentRecord, error)
	MarkProcessed(ctx context.Context, paymentID, status, gatewayStatus string) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]PaymentRecord, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Upsert inserts the record or leaves an existing row untouched. Gateway
// payment IDs are unique, so a webhook that races intent creation cannot
// produce duplicate rows.
func (r *repository) Upsert(ctx context.Context, record *PaymentRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("%w: upsert failed: %v", ErrRecordUnavailable, err)
	}
	return nil
}

func (r *repository) GetByPaymentID(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	var record PaymentRecord
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get failed: %v", ErrRecordUnavailable, err)
	}
	return &record, nil
}

func (r *repository) MarkProcessed(ctx context.Context, paymentID, status, gatewayStatus string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&PaymentRecord{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":         status,
			"gateway_status": gatewayStatus,
			"processed_at":   now,
			"updated_at":     now,
		}).Error
	if err != nil {
		return fmt.Errorf("%w: update failed: %v", ErrRecordUnavailable, err)
	}
	return nil
}

func (r *repository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]PaymentRecord, error) {
	var records []PaymentRecord
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list failed: %v", ErrRecordUnavailable, err)
	}
	return records, nil
}
