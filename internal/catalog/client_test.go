package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tripgo/internal/shared/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClient_SeatFares(t *testing.T) {
	tripID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trips/"+tripID.String()+"/fares", r.URL.Path)
		assert.Equal(t, "A1,A2", r.URL.Query().Get("seats"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"trip_id": tripID.String(),
			"fares":   map[string]int64{"A1": 2500, "A2": 3000},
		})
	}))
	defer server.Close()

	client := NewClient(config.CatalogConfig{BaseURL: server.URL, Timeout: time.Second})

	fares, err := client.SeatFares(context.Background(), tripID, []string{"A1", "A2"})

	assert.NoError(t, err)
	assert.Equal(t, int64(2500), fares["A1"])
	assert.Equal(t, int64(3000), fares["A2"])
}

func TestClient_Departure(t *testing.T) {
	tripID := uuid.New()
	departure := time.Date(2026, 9, 15, 8, 30, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trips/"+tripID.String(), r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"trip_id":      tripID.String(),
			"departure_at": departure.Format(time.RFC3339),
		})
	}))
	defer server.Close()

	client := NewClient(config.CatalogConfig{BaseURL: server.URL, Timeout: time.Second})

	got, err := client.Departure(context.Background(), tripID)

	assert.NoError(t, err)
	assert.True(t, got.Equal(departure))
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(config.CatalogConfig{BaseURL: server.URL, Timeout: time.Second})

	_, err := client.SeatFares(context.Background(), uuid.New(), []string{"A1"})
	assert.Error(t, err)
}
