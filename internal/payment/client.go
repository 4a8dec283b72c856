package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesaflow/orders-service/internal/domain"
)

// Client talks to the payment gateway. Preference creation is not
// idempotent on our side; a retried call may create a duplicate
// preference, which is the gateway's concern.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) CreatePreference(ctx context.Context, pref domain.PreferenceRequest) (*domain.PaymentPreference, error) {
	data, err := json.Marshal(pref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/preferences", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUnavailable(fmt.Sprintf("payment gateway unavailable: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, domain.NewUnavailable(fmt.Sprintf("payment gateway returned status %d", resp.StatusCode))
	}

	preference := &domain.PaymentPreference{}
	if err := json.NewDecoder(resp.Body).Decode(preference); err != nil {
		return nil, domain.NewUnavailable(fmt.Sprintf("payment gateway returned invalid response: %v", err))
	}

	return preference, nil
}
