package payments

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func accessToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"type":    "access",
		"user_id": uuid.New().String(),
		"email":   "staff@example.com",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	assert.NoError(t, err)
	return token
}

func ledgerRequest(bookingID, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payments/booking/"+bookingID, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestListByBooking_AdminSeesLedger(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	bookingID := uuid.New()
	records.On("GetByBookingID", mock.Anything, bookingID).Return([]PaymentRecord{
		{PaymentID: "pay_123", BookingID: bookingID, Status: StatusCompleted},
	}, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, ledgerRequest(bookingID.String(), accessToken(t, "ADMIN")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pay_123")
	records.AssertExpectations(t)
}

func TestListByBooking_RequiresToken(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, ledgerRequest(uuid.New().String(), ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	records.AssertNotCalled(t, "GetByBookingID", mock.Anything, mock.Anything)
}

func TestListByBooking_NonAdminForbidden(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, ledgerRequest(uuid.New().String(), accessToken(t, "USER")))

	assert.Equal(t, http.StatusForbidden, w.Code)
	records.AssertNotCalled(t, "GetByBookingID", mock.Anything, mock.Anything)
}

func TestListByBooking_InvalidID(t *testing.T) {
	svc := new(MockBookingService)
	records := new(MockRecordRepository)
	engine := setupWebhookRouter(svc, records)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, ledgerRequest("not-a-uuid", accessToken(t, "ADMIN")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
