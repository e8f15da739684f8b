// Package neto calls the Neto order API on behalf of a storefront and
// normalizes the response into the digest shape served to the widget.
package neto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storewatch/storewatch-bridge/internal/config"
)

const apiPath = "/do/WS/NetoAPI"

// window is the trailing period of orders requested on each fetch.
const window = 24 * time.Hour

// OrderSummary is one normalized order: the digest entry shape served to the
// widget and stored in the cache.
type OrderSummary struct {
	DatePlaced string `json:"date_placed"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	City       string `json:"city"`
}

// UpstreamError indicates the order API call failed: network failure, a
// non-success status, or a response body that could not be normalized.
type UpstreamError struct {
	Tenant string
	Err    error
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("order API request for %s failed: %v", e.Tenant, e.Err)
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}

func (e UpstreamError) Status() (int, string) {
	return http.StatusBadGateway, "order API unavailable"
}

// Client issues order API requests. A single upstream call is made per
// invocation; there is no internal retry.
type Client struct {
	apiKey     string
	apiURL     string // test override; empty in production
	httpClient *http.Client
	now        func() time.Time
}

func New(cfg config.NetoConfig) (Client, error) {
	if cfg.APIKey == "" {
		return Client{}, errors.New("API key must be configured for Neto API access")
	}

	timeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return Client{
		apiKey: cfg.APIKey,
		apiURL: cfg.APIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}, nil
}

type orderRequest struct {
	Filter orderFilter `json:"Filter"`
}

type orderFilter struct {
	DatePlacedFrom string   `json:"DatePlacedFrom"`
	OutputSelector []string `json:"OutputSelector"`
}

type orderResponse struct {
	Order []rawOrder `json:"Order"`
}

type rawOrder struct {
	DatePlaced string      `json:"DatePlaced"`
	OrderLine  []orderLine `json:"OrderLine"`
	BillCity   string      `json:"BillCity"`
}

type orderLine struct {
	SKU         string `json:"SKU"`
	ProductName string `json:"ProductName"`
}

// FetchDigest requests the tenant's orders placed in the trailing 24 hours and
// normalizes them. The token is the tenant's stored access token, borrowed
// read-only for this call.
//
// A record with no order lines fails the whole batch: a partial digest is
// never returned.
func (c Client) FetchDigest(ctx context.Context, tenant, token string) ([]OrderSummary, error) {
	body, err := json.Marshal(orderRequest{
		Filter: orderFilter{
			DatePlacedFrom: c.now().UTC().Add(-window).Format(time.RFC3339),
			OutputSelector: []string{
				"OrderLine",
				"OrderLine.ProductName",
				"BillAddress",
				"DatePlaced",
			},
		},
	})
	if err != nil {
		return nil, UpstreamError{Tenant: tenant, Err: fmt.Errorf("encoding filter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tenant), bytes.NewReader(body))
	if err != nil {
		return nil, UpstreamError{Tenant: tenant, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X_ACCESS_KEY", c.apiKey)
	req.Header.Set("X_SECRET_KEY", token)
	req.Header.Set("NETOAPI_ACTION", "GetOrder")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, UpstreamError{Tenant: tenant, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, UpstreamError{Tenant: tenant, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var orders orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, UpstreamError{Tenant: tenant, Err: fmt.Errorf("decoding response: %w", err)}
	}

	summaries, err := normalize(orders.Order)
	if err != nil {
		return nil, UpstreamError{Tenant: tenant, Err: err}
	}

	return summaries, nil
}

func (c Client) endpoint(tenant string) string {
	if c.apiURL != "" {
		return c.apiURL
	}
	return "https://" + tenant + apiPath
}

// normalize summarizes each order by its first order line. Multi-item orders
// are a known simplification: the widget shows one line per order.
func normalize(orders []rawOrder) ([]OrderSummary, error) {
	summaries := make([]OrderSummary, 0, len(orders))

	for i, order := range orders {
		if len(order.OrderLine) == 0 {
			return nil, fmt.Errorf("order %d has no order lines", i)
		}

		summaries = append(summaries, OrderSummary{
			DatePlaced: order.DatePlaced,
			SKU:        order.OrderLine[0].SKU,
			Name:       order.OrderLine[0].ProductName,
			City:       order.BillCity,
		})
	}

	return summaries, nil
}
