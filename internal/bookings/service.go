package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"tripgo/internal/seatlock"
	"tripgo/pkg/logger"

	"github.com/google/uuid"
)

// Catalog supplies trip data owned by the catalog service (to avoid a direct
// dependency on its implementation). Trip existence is assumed validated there.
type Catalog interface {
	SeatFares(ctx context.Context, tripID uuid.UUID, seatCodes []string) (map[string]int64, error)
	Departure(ctx context.Context, tripID uuid.UUID) (time.Time, error)
}

// PaymentGateway creates charge intents at the external payment provider.
// No cardholder data ever crosses this boundary.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
}

// PaymentIntentRequest carries only amount, description and identifiers
type PaymentIntentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	ReturnURL   string            `json:"return_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

// PaymentIntent is the gateway's answer to a created charge intent
type PaymentIntent struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

// Notifier publishes lifecycle notifications. Delivery is fire-and-forget:
// a failed publish never rolls back a booking transition.
type Notifier interface {
	NotifyBookingEvent(ctx context.Context, booking *Booking, event string) error
}

// Gateway payment statuses as reported by the webhook
const (
	GatewayStatusCompleted = "COMPLETED"
	GatewayStatusFailed    = "FAILED"
)

// Actor identifies who requested an operation
type Actor struct {
	UserID *uuid.UUID
	Role   string
}

// IsAdmin reports whether the actor may act on bookings it does not own
func (a Actor) IsAdmin() bool {
	return a.Role == "ADMIN"
}

// ConfirmResult is the outcome of a payment confirmation. AlreadyProcessed is
// reported distinctly so webhook redelivery can be acknowledged without
// re-applying side effects.
type ConfirmResult struct {
	Booking          *Booking
	AlreadyProcessed bool
}

// RefundPolicy computes the refund for cancelling a confirmed booking as a
// function of time to departure.
type RefundPolicy func(booking *Booking, departure, now time.Time) int64

// DefaultRefundPolicy refunds a share of the seat subtotal by cancellation
// lead time; the service fee is never refunded.
func DefaultRefundPolicy(booking *Booking, departure, now time.Time) int64 {
	lead := departure.Sub(now)
	switch {
	case lead >= 48*time.Hour:
		return booking.Subtotal
	case lead >= 24*time.Hour:
		return booking.Subtotal / 2
	default:
		return 0
	}
}

// Service interface defines the contract for the booking state machine
type Service interface {
	CreateHold(ctx context.Context, req CreateHoldRequest) (*HoldResponse, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, gatewayStatus, gatewayRef string) (*ConfirmResult, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*Booking, error)
	ExtendHold(ctx context.Context, bookingID uuid.UUID, actor Actor) (*Booking, error)
	ProcessExpiredBookings(ctx context.Context) (int, error)

	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error)
}

// Config holds the tunables of the booking core
type Config struct {
	HoldDuration      time.Duration
	ServiceFeePercent int
	ServiceFeeFixed   int64
	Currency          string
	ReturnURL         string
	CancelURL         string
}

// service implements the Service interface
type service struct {
	repo         Repository
	locks        seatlock.Store
	catalog      Catalog
	gateway      PaymentGateway
	notifier     Notifier
	refundPolicy RefundPolicy
	cfg          Config
}

// NewService creates a new booking service instance
func NewService(repo Repository, locks seatlock.Store, catalog Catalog, gateway PaymentGateway, notifier Notifier, cfg Config) Service {
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = 10 * time.Minute
	}
	return &service{
		repo:         repo,
		locks:        locks,
		catalog:      catalog,
		gateway:      gateway,
		notifier:     notifier,
		refundPolicy: DefaultRefundPolicy,
		cfg:          cfg,
	}
}

var seatCodePattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,2}$`)

const maxSeatsPerHold = 6

// CreateHold validates the request, locks the seats atomically and persists a
// PENDING_PAYMENT booking with a payment redirect. This is the only entry
// point that creates seat contention.
func (s *service) CreateHold(ctx context.Context, req CreateHoldRequest) (*HoldResponse, error) {
	tripID, seatCodes, err := s.validateHoldRequest(req)
	if err != nil {
		return nil, err
	}

	fares, err := s.catalog.SeatFares(ctx, tripID, seatCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat fares: %w", err)
	}
	for _, code := range seatCodes {
		if _, ok := fares[code]; !ok {
			return nil, fmt.Errorf("%w: unknown seat %s for trip", ErrValidation, code)
		}
	}

	bookingID := uuid.New()
	now := time.Now()
	lockedUntil := now.Add(s.cfg.HoldDuration)

	// Acquire all seat locks as one atomic batch. A conflict means another
	// hold owns at least one seat; anything else is an infrastructure failure
	// and must not be treated as availability.
	if err := s.locks.Acquire(ctx, tripID.String(), seatCodes, bookingID.String(), s.cfg.HoldDuration); err != nil {
		var conflict *seatlock.ConflictError
		if errors.As(err, &conflict) {
			return nil, fmt.Errorf("%w: seat %s", ErrSeatUnavailable, conflict.SeatCode)
		}
		return nil, fmt.Errorf("failed to acquire seat locks: %w", err)
	}

	booking, err := s.buildPendingBooking(ctx, bookingID, tripID, seatCodes, fares, req, lockedUntil)
	if err != nil {
		s.rollbackLocks(ctx, tripID.String(), seatCodes, bookingID.String())
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, PaymentIntentRequest{
		Amount:      booking.Total,
		Currency:    booking.Currency,
		Description: fmt.Sprintf("Booking %s (%d seats)", booking.Reference, len(seatCodes)),
		ReturnURL:   s.cfg.ReturnURL,
		CancelURL:   s.cfg.CancelURL,
		Metadata: map[string]string{
			"booking_id":        booking.ID.String(),
			"booking_reference": booking.Reference,
		},
	})
	if err != nil {
		s.rollbackLocks(ctx, tripID.String(), seatCodes, bookingID.String())
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	booking.PaymentID = intent.PaymentID
	booking.PaymentStatus = "PENDING"

	if err := s.repo.Create(ctx, booking); err != nil {
		s.rollbackLocks(ctx, tripID.String(), seatCodes, bookingID.String())
		return nil, err
	}

	logger.GetDefault().LogHoldCreated(ctx, booking.ID.String(), tripID.String(), len(seatCodes), lockedUntil)

	return newHoldResponse(booking, intent.RedirectURL), nil
}

// ConfirmPayment applies the gateway's terminal payment status to the hold.
// Idempotent: redelivery of a status the booking already reached reports
// AlreadyProcessed and mutates nothing.
func (s *service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, gatewayStatus, gatewayRef string) (*ConfirmResult, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status.IsTerminal() {
		return &ConfirmResult{Booking: booking, AlreadyProcessed: true}, nil
	}

	now := time.Now()
	// Expiration wins ties: a confirmation that arrives after the deadline is
	// rejected even if the sweeper has not reached this row yet, because the
	// seats may already be reassigned.
	if booking.HoldExpired(now) {
		return nil, fmt.Errorf("%w: locked until %s", ErrHoldExpired, booking.LockedUntil.Format(time.RFC3339))
	}

	switch gatewayStatus {
	case GatewayStatusCompleted:
		transitioned, err := s.repo.ConfirmIfPending(ctx, bookingID, gatewayRef, now)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			// Lost the race to the sweeper or a concurrent delivery; report
			// whatever state won.
			current, err := s.repo.GetByID(ctx, bookingID)
			if err != nil {
				return nil, err
			}
			return &ConfirmResult{Booking: current, AlreadyProcessed: true}, nil
		}

		if err := s.locks.Promote(ctx, bookingID.String()); err != nil {
			// The row is authoritative; a failed promote leaves a TTL on the
			// locks but never un-confirms the booking.
			logger.GetDefault().ErrorWithContext(ctx, "failed to promote seat locks", err,
				map[string]interface{}{"booking_id": bookingID.String()})
		}

		confirmed, err := s.repo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		logger.GetDefault().LogBookingConfirmed(ctx, bookingID.String(), confirmed.PaymentID)
		s.notify(ctx, confirmed, "booking_confirmed")
		return &ConfirmResult{Booking: confirmed}, nil

	case GatewayStatusFailed:
		transitioned, err := s.repo.CancelIfPending(ctx, bookingID, "payment_failed")
		if err != nil {
			return nil, err
		}
		if !transitioned {
			current, err := s.repo.GetByID(ctx, bookingID)
			if err != nil {
				return nil, err
			}
			return &ConfirmResult{Booking: current, AlreadyProcessed: true}, nil
		}

		s.releaseLocks(ctx, booking)

		cancelled, err := s.repo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, cancelled, "booking_cancelled")
		return &ConfirmResult{Booking: cancelled}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported gateway status %q", ErrValidation, gatewayStatus)
	}
}

// Cancel cancels a hold or a confirmed booking. Refunds apply only when
// cancelling a confirmed booking.
func (s *service) Cancel(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.UserID != nil && !actor.IsAdmin() {
		if actor.UserID == nil || *actor.UserID != *booking.UserID {
			return nil, ErrUnauthorized
		}
	}

	if !booking.Status.CanBeCancelled() {
		return nil, fmt.Errorf("booking is already %s", booking.Status)
	}

	switch booking.Status {
	case StatusPendingPayment:
		transitioned, err := s.repo.CancelIfPending(ctx, bookingID, reason)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			return nil, fmt.Errorf("%w: booking already transitioned", ErrAlreadyProcessed)
		}

	case StatusConfirmed:
		refund := s.computeRefund(ctx, booking)
		transitioned, err := s.repo.CancelIfConfirmed(ctx, bookingID, reason, refund)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			return nil, fmt.Errorf("%w: booking already transitioned", ErrAlreadyProcessed)
		}
	}

	s.releaseLocks(ctx, booking)

	cancelled, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	actorLabel := "admin"
	if !actor.IsAdmin() {
		actorLabel = "user"
	}
	logger.GetDefault().LogBookingCancelled(ctx, bookingID.String(), actorLabel, reason)
	s.notify(ctx, cancelled, "booking_cancelled")

	return cancelled, nil
}

// ExtendHold grants one more payment window to a pending hold, pushing both
// the row deadline and the lock TTLs forward. An already-expired hold cannot
// be extended; the customer starts over so released seats stay releasable.
func (s *service) ExtendHold(ctx context.Context, bookingID uuid.UUID, actor Actor) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.UserID != nil && !actor.IsAdmin() {
		if actor.UserID == nil || *actor.UserID != *booking.UserID {
			return nil, ErrUnauthorized
		}
	}

	if booking.Status != StatusPendingPayment {
		return nil, fmt.Errorf("%w: booking is %s", ErrAlreadyProcessed, booking.Status)
	}

	now := time.Now()
	if booking.HoldExpired(now) {
		return nil, fmt.Errorf("%w: locked until %s", ErrHoldExpired, booking.LockedUntil.Format(time.RFC3339))
	}

	lockedUntil := now.Add(s.cfg.HoldDuration)
	transitioned, err := s.repo.ExtendIfPending(ctx, bookingID, lockedUntil)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, fmt.Errorf("%w: booking already transitioned", ErrAlreadyProcessed)
	}

	if err := s.locks.Renew(ctx, bookingID.String(), s.cfg.HoldDuration); err != nil {
		// Row deadline moved but lock TTLs did not. The locks may lapse early;
		// re-acquisition by the same booking is allowed, so log and carry on.
		logger.GetDefault().ErrorWithContext(ctx, "failed to renew seat locks", err,
			map[string]interface{}{"booking_id": bookingID.String()})
	}

	return s.repo.GetByID(ctx, bookingID)
}

// ProcessExpiredBookings transitions all overdue holds to EXPIRED and releases
// their seat locks. A row that loses the race to a concurrent confirmation is
// skipped; a failing row is logged and never blocks the rest of the sweep.
func (s *service) ProcessExpiredBookings(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := s.repo.FindExpired(ctx, now, 100)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		booking := &expired[i]

		transitioned, err := s.repo.ExpireIfPending(ctx, booking.ID, now)
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to expire booking", err,
				map[string]interface{}{"booking_id": booking.ID.String()})
			continue
		}
		if !transitioned {
			// Confirmed, cancelled, or extended while the sweep was running.
			continue
		}

		s.releaseLocks(ctx, booking)
		s.notify(ctx, booking, "booking_expired")
		count++
	}

	return count, nil
}

// GetBooking retrieves a booking by ID
func (s *service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, bookingID)
}

// GetBookingByReference retrieves a booking by its human-facing reference
func (s *service) GetBookingByReference(ctx context.Context, reference string) (*Booking, error) {
	return s.repo.GetByReference(ctx, reference)
}

// GetUserBookings retrieves bookings for a specific user
func (s *service) GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	return s.repo.GetUserBookings(ctx, userID, limit, offset)
}

func (s *service) validateHoldRequest(req CreateHoldRequest) (uuid.UUID, []string, error) {
	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: invalid trip ID", ErrValidation)
	}

	if len(req.SeatCodes) == 0 {
		return uuid.Nil, nil, fmt.Errorf("%w: no seats specified", ErrValidation)
	}
	if len(req.SeatCodes) > maxSeatsPerHold {
		return uuid.Nil, nil, fmt.Errorf("%w: at most %d seats per booking", ErrValidation, maxSeatsPerHold)
	}

	seen := make(map[string]bool, len(req.SeatCodes))
	for _, code := range req.SeatCodes {
		if !seatCodePattern.MatchString(code) {
			return uuid.Nil, nil, fmt.Errorf("%w: invalid seat code %q", ErrValidation, code)
		}
		if seen[code] {
			return uuid.Nil, nil, fmt.Errorf("%w: duplicate seat code %q", ErrValidation, code)
		}
		seen[code] = true
	}

	if req.Contact.Name == "" || req.Contact.Email == "" {
		return uuid.Nil, nil, fmt.Errorf("%w: contact name and email are required", ErrValidation)
	}

	return tripID, req.SeatCodes, nil
}

func (s *service) buildPendingBooking(ctx context.Context, bookingID, tripID uuid.UUID, seatCodes []string, fares map[string]int64, req CreateHoldRequest, lockedUntil time.Time) (*Booking, error) {
	reference, err := s.generateReference(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	var userID *uuid.UUID
	if req.UserID != nil {
		parsed, err := uuid.Parse(*req.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid user ID", ErrValidation)
		}
		userID = &parsed
	}

	var subtotal int64
	seats := make([]BookingSeat, 0, len(seatCodes))
	for _, code := range seatCodes {
		fare := fares[code]
		subtotal += fare
		seats = append(seats, BookingSeat{
			BookingID: bookingID,
			SeatCode:  code,
			Fare:      fare,
		})
	}

	serviceFee := s.computeServiceFee(subtotal)

	return &Booking{
		ID:           bookingID,
		Reference:    reference,
		TripID:       tripID,
		UserID:       userID,
		Status:       StatusPendingPayment,
		LockedUntil:  lockedUntil,
		ContactName:  req.Contact.Name,
		ContactEmail: req.Contact.Email,
		ContactPhone: req.Contact.Phone,
		Subtotal:     subtotal,
		ServiceFee:   serviceFee,
		Total:        subtotal + serviceFee,
		Currency:     s.cfg.Currency,
		Seats:        seats,
	}, nil
}

// computeServiceFee applies the percentage-plus-fixed fee, rounded to the
// nearest integer currency unit.
func (s *service) computeServiceFee(subtotal int64) int64 {
	percent := (subtotal*int64(s.cfg.ServiceFeePercent) + 50) / 100
	return percent + s.cfg.ServiceFeeFixed
}

func (s *service) computeRefund(ctx context.Context, booking *Booking) int64 {
	departure, err := s.catalog.Departure(ctx, booking.TripID)
	if err != nil {
		// Fail in the customer's favor when the catalog cannot be reached.
		logger.GetDefault().ErrorWithContext(ctx, "failed to get trip departure for refund", err,
			map[string]interface{}{"booking_id": booking.ID.String()})
		return booking.Subtotal
	}
	return s.refundPolicy(booking, departure, time.Now())
}

// generateReference generates a unique date-stamped booking reference,
// retrying on the (unlikely) collision.
func (s *service) generateReference(ctx context.Context) (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		timestamp := time.Now().Format("20060102")
		randomPart := make([]byte, 6)
		for i := range randomPart {
			num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
			if err != nil {
				return "", err
			}
			randomPart[i] = letters[num.Int64()]
		}

		reference := fmt.Sprintf("TRP-%s-%s", timestamp, string(randomPart))

		exists, err := s.repo.ReferenceExists(ctx, reference)
		if err != nil {
			return "", err
		}
		if !exists {
			return reference, nil
		}
	}

	return "", fmt.Errorf("could not generate a unique booking reference after %d attempts", maxAttempts)
}

// rollbackLocks undoes a successful acquisition when a later step of hold
// creation fails, so no seat stays locked for a booking that was never stored.
func (s *service) rollbackLocks(ctx context.Context, tripID string, seatCodes []string, bookingID string) {
	if err := s.locks.Release(ctx, tripID, seatCodes); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to roll back seat locks", err,
			map[string]interface{}{"booking_id": bookingID, "trip_id": tripID})
	}
}

func (s *service) releaseLocks(ctx context.Context, booking *Booking) {
	if err := s.locks.Release(ctx, booking.TripID.String(), booking.SeatCodes()); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to release seat locks", err,
			map[string]interface{}{"booking_id": booking.ID.String()})
	}
}

func (s *service) notify(ctx context.Context, booking *Booking, event string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyBookingEvent(ctx, booking, event); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to publish booking notification", err,
			map[string]interface{}{"booking_id": booking.ID.String(), "event": event})
	}
}
