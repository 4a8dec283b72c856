package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesaflow/orders-service/internal/domain"
)

// Client talks to the product catalog service. Transport errors and
// non-2xx responses surface as 502 errors; the engine never retries.
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

type productsRequest struct {
	IDs        []int64 `json:"ids"`
	BusinessID string  `json:"business_id"`
}

// ValidateProducts prices exactly the given ids; the catalog rejects
// the whole request when any id is unknown.
func (c *Client) ValidateProducts(ctx context.Context, ids []int64, businessID string) ([]domain.Product, error) {
	return c.post(ctx, "/products/validate", ids, businessID)
}

func (c *Client) GetProductsByIDs(ctx context.Context, ids []int64, businessID string) ([]domain.Product, error) {
	return c.post(ctx, "/products/by-ids", ids, businessID)
}

func (c *Client) GetAvailableProductsByIDs(ctx context.Context, ids []int64, businessID string) ([]domain.Product, error) {
	return c.post(ctx, "/products/available/by-ids", ids, businessID)
}

func (c *Client) post(ctx context.Context, path string, ids []int64, businessID string) ([]domain.Product, error) {
	data, err := json.Marshal(productsRequest{IDs: ids, BusinessID: businessID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUnavailable(fmt.Sprintf("product catalog unavailable: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUnavailable(fmt.Sprintf("product catalog returned status %d", resp.StatusCode))
	}

	var products []domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, domain.NewUnavailable(fmt.Sprintf("product catalog returned invalid response: %v", err))
	}

	return products, nil
}
