package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripgo/internal/shared/config"

	"github.com/google/uuid"
)

// Client fetches trip data from the catalog service. It implements
// bookings.Catalog.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(cfg config.CatalogConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type seatFaresResponse struct {
	TripID string           `json:"trip_id"`
	Fares  map[string]int64 `json:"fares"`
}

type tripResponse struct {
	TripID      string    `json:"trip_id"`
	DepartureAt time.Time `json:"departure_at"`
}

// SeatFares returns fares in minor currency units for the requested seats.
// Seats absent from the response do not exist on the trip's seat map.
func (c *Client) SeatFares(ctx context.Context, tripID uuid.UUID, seatCodes []string) (map[string]int64, error) {
	endpoint := fmt.Sprintf("%s/v1/trips/%s/fares?seats=%s",
		c.baseURL, tripID, url.QueryEscape(strings.Join(seatCodes, ",")))

	var resp seatFaresResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch seat fares: %w", err)
	}
	return resp.Fares, nil
}

// Departure returns the trip's scheduled departure time
func (c *Client) Departure(ctx context.Context, tripID uuid.UUID) (time.Time, error) {
	endpoint := fmt.Sprintf("%s/v1/trips/%s", c.baseURL, tripID)

	var resp tripResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch trip: %w", err)
	}
	return resp.DepartureAt, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	return json.Unmarshal(body, out)
}
