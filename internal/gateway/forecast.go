package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yourorg/stockcast/internal/domain"
)

// GeneratePredictions triggers a backend recomputation and returns the raw body.
// Not idempotent: every call may start an expensive job.
func (c *Client) GeneratePredictions(ctx context.Context) ([]byte, error) {
	resp, err := c.makeRequest(ctx, "predict", http.MethodPost, "/predict", nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetPredictions fetches the current predictions page
func (c *Client) GetPredictions(ctx context.Context) ([]byte, error) {
	resp, err := c.makeRequest(ctx, "predict_page", http.MethodGet, "/predict-page", nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetTransferSuggestions asks the backend for inter-store transfer suggestions
func (c *Client) GetTransferSuggestions(ctx context.Context) ([]byte, error) {
	resp, err := c.makeRequest(ctx, "transfer_suggestions", http.MethodPost, "/transfer-suggestions", nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ParsePredictions decodes a JSON array body. Non-JSON bodies (the HTML pages the
// backend serves today) report ok=false with no error.
func ParsePredictions(body []byte) ([]domain.Prediction, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false, nil
	}
	var predictions []domain.Prediction
	if err := json.Unmarshal(trimmed, &predictions); err != nil {
		return nil, false, fmt.Errorf("failed to decode predictions: %w", err)
	}
	return predictions, true, nil
}
