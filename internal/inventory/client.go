// Package inventory talks to the remote inventory service over HTTP.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	productsPath = "/products"
	pushPath     = "/products/sync-from-sales"

	// maxBodyBytes caps how much of an error body is kept for reporting
	maxBodyBytes = 4096
	fetchRetries = 3
)

// PushRow is one product in the sync-from-sales payload
type PushRow struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	ListPrice   string `json:"listPrice"`
	Status      string `json:"status"`
	CurrentQty  int    `json:"currentQty"`
}

// Gateway is the contract the sync service depends on
type Gateway interface {
	// FetchProducts returns the raw product rows so a single malformed row
	// does not fail the whole batch
	FetchProducts(ctx context.Context) ([]json.RawMessage, error)
	PushProducts(ctx context.Context, rows []PushRow) (json.RawMessage, error)
}

// Client implements Gateway
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for cfg.BaseURL
func NewClient(cfg config.InventoryConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// FetchProducts calls GET {base}/products. Network failures and 5xx
// responses are retried with exponential backoff.
func (c *Client) FetchProducts(ctx context.Context) ([]json.RawMessage, error) {
	var rows []json.RawMessage

	operation := func() error {
		req, err := c.newRequest(ctx, http.MethodGet, productsPath, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		body, err := c.do(req, isSuccess)
		if err != nil {
			var transportErr *domain.TransportError
			if errors.As(err, &transportErr) && transportErr.StatusCode >= 400 && transportErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		rows = nil
		if err := json.Unmarshal(body, &rows); err != nil {
			return backoff.Permanent(&domain.TransportError{
				StatusCode: http.StatusOK,
				Body:       truncate(body),
				Err:        fmt.Errorf("inventory returned a non-array body: %w", err),
			})
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), fetchRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying inventory fetch",
			zap.Error(err),
			zap.Duration("wait", wait),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched inventory products", zap.Int("count", len(rows)))
	return rows, nil
}

// PushProducts POSTs the whole catalog to {base}/products/sync-from-sales and
// returns the inventory's JSON reply, or nil when the reply is not JSON
func (c *Client) PushProducts(ctx context.Context, rows []PushRow) (json.RawMessage, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pushPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// only 200 confirms a push
	body, err := c.do(req, isOK)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Pushed products to inventory", zap.Int("count", len(rows)))

	if !json.Valid(body) {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build inventory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// do executes req and returns the body when accept approves the status.
// Anything else becomes a TransportError.
func (c *Client) do(req *http.Request, accept func(status int) bool) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if !accept(resp.StatusCode) {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	return body, nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

func isOK(status int) bool { return status == http.StatusOK }

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func truncate(body []byte) string {
	if len(body) > maxBodyBytes {
		return string(body[:maxBodyBytes])
	}
	return string(body)
}
