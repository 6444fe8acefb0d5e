package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tripgo/internal/bookings"
	"tripgo/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	testSecret    = "whsec_test"
	testJWTSecret = "jwt_test_secret"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateHold(ctx context.Context, req bookings.CreateHoldRequest) (*bookings.HoldResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.HoldResponse), args.Error(1)
}

func (m *MockBookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, gatewayStatus, gatewayRef string) (*bookings.ConfirmResult, error) {
	args := m.Called(ctx, bookingID, gatewayStatus, gatewayRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.ConfirmResult), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, bookingID uuid.UUID, actor bookings.Actor, reason string) (*bookings.Booking, error) {
	args := m.Called(ctx, bookingID, actor, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.Booking), args.Error(1)
}

func (m *MockBookingService) ExtendHold(ctx context.Context, bookingID uuid.UUID, actor bookings.Actor) (*bookings.Booking, error) {
	args := m.Called(ctx, bookingID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.Booking), args.Error(1)
}

func (m *MockBookingService) ProcessExpiredBookings(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*bookings.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.Booking), args.Error(1)
}

func (m *MockBookingService) GetBookingByReference(ctx context.Context, reference string) (*bookings.Booking, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.Booking), args.Error(1)
}

func (m *MockBookingService) GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]bookings.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bookings.Booking), args.Error(1)
}

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Upsert(ctx context.Context, record *PaymentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByPaymentID(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentRecord), args.Error(1)
}

func (m *MockRecordRepository) MarkProcessed(ctx context.Context, paymentID, status, gatewayStatus string) error {
	args := m.Called(ctx, paymentID, status, gatewayStatus)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]PaymentRecord, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PaymentRecord), args.Error(1)
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(t *testing.T, payload bookings.WebhookPayload, signature string) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature == "valid" {
		signature = sign(body, testSecret)
	}
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func setupWebhookRouter(svc *MockBookingService, records *MockRecordRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	webhook := NewWebhookController(svc, records, testSecret)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testJWTSecret}}
	SetupPaymentRoutes(engine.Group("/api/v1"), webhook, NewController(records), cfg)
	return engine
}

func confirmedBooking() *bookings.Booking {
	id := uuid.New()
	return &bookings.Booking{
		ID:        id,
		Reference: "TRP-20260901-QWERTY",
		TripID:    uuid.New(),
		Status:    bookings.StatusConfirmed,
		Total:     5350,
		Currency:  "USD",
		PaymentID: "pay_123",
		PaidAt:    func() *time.Time { now := time.Now(); return &now }(),
	}
}

func TestWebhook_CompletedPayment(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	booking := confirmedBooking()
	payload := bookings.WebhookPayload{
		PaymentID: "pay_123",
		BookingID: booking.ID.String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	records.On("GetByPaymentID", mock.Anything, "pay_123").Return(nil, nil)
	svc.On("ConfirmPayment", mock.Anything, booking.ID, bookings.GatewayStatusCompleted, "pay_123").
		Return(&bookings.ConfirmResult{Booking: booking}, nil)
	records.On("Upsert", mock.Anything, mock.MatchedBy(func(r *PaymentRecord) bool {
		return r.PaymentID == "pay_123" && r.BookingID == booking.ID
	})).Return(nil)
	records.On("MarkProcessed", mock.Anything, "pay_123", StatusCompleted, bookings.GatewayStatusCompleted).Return(nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "valid"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), bookings.StatusConfirmed.String())
	svc.AssertExpectations(t)
	records.AssertExpectations(t)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	payload := bookings.WebhookPayload{
		PaymentID: "pay_123",
		BookingID: uuid.New().String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "deadbeef"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhook_MissingSignature(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	payload := bookings.WebhookPayload{
		PaymentID: "pay_123",
		BookingID: uuid.New().String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_RedeliveryAcked(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	booking := confirmedBooking()
	payload := bookings.WebhookPayload{
		PaymentID: "pay_123",
		BookingID: booking.ID.String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	records.On("GetByPaymentID", mock.Anything, "pay_123").Return(nil, nil)
	svc.On("ConfirmPayment", mock.Anything, booking.ID, bookings.GatewayStatusCompleted, "pay_123").
		Return(&bookings.ConfirmResult{Booking: booking, AlreadyProcessed: true}, nil)
	records.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	records.On("MarkProcessed", mock.Anything, "pay_123", StatusCompleted, bookings.GatewayStatusCompleted).Return(nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "valid"))

	// Redelivery gets a 2xx so the gateway stops retrying.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already processed")
}

func TestWebhook_LedgerShortCircuit(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	bookingID := uuid.New()
	payload := bookings.WebhookPayload{
		PaymentID: "pay_123",
		BookingID: bookingID.String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	processedAt := time.Now()
	records.On("GetByPaymentID", mock.Anything, "pay_123").Return(&PaymentRecord{
		PaymentID:     "pay_123",
		BookingID:     bookingID,
		Status:        StatusCompleted,
		GatewayStatus: bookings.GatewayStatusCompleted,
		ProcessedAt:   &processedAt,
	}, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "valid"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already processed")
	svc.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhook_ExpiredHoldAcked(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	bookingID := uuid.New()
	payload := bookings.WebhookPayload{
		PaymentID: "pay_456",
		BookingID: bookingID.String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	records.On("GetByPaymentID", mock.Anything, "pay_456").Return(nil, nil)
	svc.On("ConfirmPayment", mock.Anything, bookingID, bookings.GatewayStatusCompleted, "pay_456").
		Return(nil, bookings.ErrHoldExpired)
	// No earlier write created the ledger row, so the FAILED outcome must
	// insert it before marking it processed.
	records.On("Upsert", mock.Anything, mock.MatchedBy(func(r *PaymentRecord) bool {
		return r.PaymentID == "pay_456" && r.BookingID == bookingID
	})).Return(nil)
	records.On("MarkProcessed", mock.Anything, "pay_456", StatusFailed, bookings.GatewayStatusCompleted).Return(nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "valid"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), bookings.StatusExpired.String())
	records.AssertExpectations(t)
}

func TestWebhook_StorageDownTriggersRedelivery(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	bookingID := uuid.New()
	payload := bookings.WebhookPayload{
		PaymentID: "pay_789",
		BookingID: bookingID.String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	records.On("GetByPaymentID", mock.Anything, "pay_789").Return(nil, nil)
	svc.On("ConfirmPayment", mock.Anything, bookingID, bookings.GatewayStatusCompleted, "pay_789").
		Return(nil, bookings.ErrRepositoryUnavailable)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "valid"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign(body, testSecret))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_MissingFields(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	payload := bookings.WebhookPayload{
		BookingID: uuid.New().String(),
		Status:    bookings.GatewayStatusCompleted,
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(t, payload, "valid"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
