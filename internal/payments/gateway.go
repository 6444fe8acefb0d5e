package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tripgo/internal/bookings"
	"tripgo/internal/shared/config"
)

// HTTPGateway talks to the external payment provider's REST API. It implements
// bookings.PaymentGateway.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(cfg config.PaymentConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type intentResponse struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

type gatewayError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CreateIntent registers a charge intent with the provider and returns the
// redirect URL the customer completes payment at.
func (g *HTTPGateway) CreateIntent(ctx context.Context, req bookings.PaymentIntentRequest) (*bookings.PaymentIntent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var gwErr gatewayError
		if json.Unmarshal(respBody, &gwErr) == nil && gwErr.Message != "" {
			return nil, fmt.Errorf("payment gateway rejected intent (%d): %s", resp.StatusCode, gwErr.Message)
		}
		return nil, fmt.Errorf("payment gateway rejected intent: status %d", resp.StatusCode)
	}

	var intent intentResponse
	if err := json.Unmarshal(respBody, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if intent.PaymentID == "" {
		return nil, fmt.Errorf("gateway response missing payment_id")
	}

	return &bookings.PaymentIntent{
		PaymentID:   intent.PaymentID,
		RedirectURL: intent.RedirectURL,
	}, nil
}
