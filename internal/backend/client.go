// Package backend is the REST client for the remote ERP backend that owns
// clients, products and submitted sales. Everything this service knows about
// those records arrives through here.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/balcao-erp/balcao-erp/internal/sale"
)

// ErrBackend wraps any failed backend call. When the failure body carries a
// human-readable message it is included in the error text.
var ErrBackend = errors.New("backend request failed")

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a backend client. baseURL must not end with a slash.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SearchClients returns clients whose name contains the fragment. The
// minimum-length gate lives in the caller; this always dispatches.
func (c *Client) SearchClients(ctx context.Context, fragment string) ([]sale.Client, error) {
	var clients []sale.Client
	if err := c.getJSON(ctx, "/clients/likename/"+url.PathEscape(fragment), &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// SearchProducts returns products whose name contains the fragment.
func (c *Client) SearchProducts(ctx context.Context, fragment string) ([]sale.Product, error) {
	var products []sale.Product
	if err := c.getJSON(ctx, "/products/likename/"+url.PathEscape(fragment), &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateSale posts the sale record. Any non-2xx response is an error; the
// draft that produced the record stays with the caller for retry.
func (c *Client) CreateSale(ctx context.Context, s sale.Sale) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sales", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return failure(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrBackend, err)
	}
	return nil
}

// failure builds an error from a non-2xx response, surfacing the backend's
// "message" field when present.
func failure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Message != "" {
		return fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, detail.Message)
	}
	return fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
}
