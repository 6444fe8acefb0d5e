package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// Core booking operations
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByReference(ctx context.Context, reference string) (*Booking, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	// User booking operations
	GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error)

	// Guarded state transitions. Each returns whether the row was transitioned;
	// false means another caller already moved it to a terminal state.
	ConfirmIfPending(ctx context.Context, id uuid.UUID, gatewayRef string, paidAt time.Time) (bool, error)
	ExtendIfPending(ctx context.Context, id uuid.UUID, lockedUntil time.Time) (bool, error)
	CancelIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	ExpireIfPending(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CancelIfConfirmed(ctx context.Context, id uuid.UUID, reason string, refundAmount int64) (bool, error)

	// Expiration sweep
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return fmt.Errorf("%w: create failed: %v", ErrRepositoryUnavailable, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get failed: %v", ErrRepositoryUnavailable, err)
	}
	return &booking, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("reference = ?", reference).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get failed: %v", ErrRepositoryUnavailable, err)
	}
	return &booking, nil
}

func (r *repository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("reference = ?", reference).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: reference check failed: %v", ErrRepositoryUnavailable, err)
	}
	return count > 0, nil
}

func (r *repository) GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var bookings []Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list failed: %v", ErrRepositoryUnavailable, err)
	}
	return bookings, nil
}

// ConfirmIfPending moves the row to CONFIRMED only if it is still pending.
// The status predicate in the WHERE clause is what serializes a race between
// payment confirmation and the expiration sweep: exactly one caller wins.
func (r *repository) ConfirmIfPending(ctx context.Context, id uuid.UUID, gatewayRef string, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusPendingPayment).
		Updates(map[string]interface{}{
			"status":         StatusConfirmed,
			"payment_status": "COMPLETED",
			"payment_id":     gorm.Expr("CASE WHEN payment_id = '' THEN ? ELSE payment_id END", gatewayRef),
			"paid_at":        paidAt,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("%w: confirm failed: %v", ErrRepositoryUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ExtendIfPending(ctx context.Context, id uuid.UUID, lockedUntil time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusPendingPayment).
		Updates(map[string]interface{}{
			"locked_until": lockedUntil,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("%w: extend failed: %v", ErrRepositoryUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CancelIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusPendingPayment).
		Updates(map[string]interface{}{
			"status":        StatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("%w: cancel failed: %v", ErrRepositoryUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ExpireIfPending re-checks the deadline inside the guard: a hold extended
// after the sweep's SELECT carries a future locked_until and must not match.
func (r *repository) ExpireIfPending(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ? AND locked_until < ?", id, StatusPendingPayment, now).
		Updates(map[string]interface{}{
			"status":     StatusExpired,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("%w: expire failed: %v", ErrRepositoryUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CancelIfConfirmed(ctx context.Context, id uuid.UUID, reason string, refundAmount int64) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusConfirmed).
		Updates(map[string]interface{}{
			"status":        StatusCancelled,
			"cancel_reason": reason,
			"refund_amount": refundAmount,
			"cancelled_at":  now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("%w: cancel failed: %v", ErrRepositoryUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 100
	}

	var bookings []Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("status = ? AND locked_until < ?", StatusPendingPayment, now).
		Order("locked_until ASC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("%w: expired scan failed: %v", ErrRepositoryUnavailable, err)
	}
	return bookings, nil
}
