package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tripgo/internal/bookings"
	"tripgo/internal/shared/config"

	"github.com/stretchr/testify/assert"
)

func TestHTTPGateway_CreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req bookings.PaymentIntentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(5350), req.Amount)
		assert.Equal(t, "USD", req.Currency)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"payment_id":   "pay_abc",
			"redirect_url": "https://gateway/pay/abc",
			"status":       "PENDING",
		})
	}))
	defer server.Close()

	gateway := NewHTTPGateway(config.PaymentConfig{
		BaseURL: server.URL,
		APIKey:  "sk_test",
		Timeout: 2 * time.Second,
	})

	intent, err := gateway.CreateIntent(context.Background(), bookings.PaymentIntentRequest{
		Amount:   5350,
		Currency: "USD",
	})

	assert.NoError(t, err)
	assert.Equal(t, "pay_abc", intent.PaymentID)
	assert.Equal(t, "https://gateway/pay/abc", intent.RedirectURL)
}

func TestHTTPGateway_CreateIntent_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "amount below minimum",
			"code":    "amount_too_small",
		})
	}))
	defer server.Close()

	gateway := NewHTTPGateway(config.PaymentConfig{BaseURL: server.URL, APIKey: "sk_test"})

	intent, err := gateway.CreateIntent(context.Background(), bookings.PaymentIntentRequest{Amount: 1})

	assert.Nil(t, intent)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "amount below minimum")
}

func TestHTTPGateway_CreateIntent_MissingPaymentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
	}))
	defer server.Close()

	gateway := NewHTTPGateway(config.PaymentConfig{BaseURL: server.URL, APIKey: "sk_test"})

	intent, err := gateway.CreateIntent(context.Background(), bookings.PaymentIntentRequest{Amount: 5350})

	assert.Nil(t, intent)
	assert.Error(t, err)
}

func TestHTTPGateway_CreateIntent_Unreachable(t *testing.T) {
	gateway := NewHTTPGateway(config.PaymentConfig{
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "sk_test",
		Timeout: 200 * time.Millisecond,
	})

	intent, err := gateway.CreateIntent(context.Background(), bookings.PaymentIntentRequest{Amount: 5350})

	assert.Nil(t, intent)
	assert.Error(t, err)
}
