package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPFetcher reads payment status from the public status endpoint.
type HTTPFetcher struct {
	BaseURL           string
	Token             string
	CheckoutRequestID string
	Client            *http.Client
}

type statusEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Status        string `json:"status"`
		ReceiptNumber string `json:"receiptNumber"`
		Booking       struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"booking"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HTTPFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	u := strings.TrimRight(h.BaseURL, "/") + "/payments/status/" + url.PathEscape(h.CheckoutRequestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Snapshot{}, err
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Snapshot{}, fmt.Errorf("decode status response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		if env.Error != nil {
			return Snapshot{}, fmt.Errorf("status request failed (http %d): %s: %s", resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		return Snapshot{}, fmt.Errorf("status request failed (http %d)", resp.StatusCode)
	}

	return Snapshot{
		Status:        env.Data.Status,
		ReceiptNumber: env.Data.ReceiptNumber,
		BookingID:     env.Data.Booking.ID,
		BookingStatus: env.Data.Booking.Status,
	}, nil
}
