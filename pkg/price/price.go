// Package price fetches USD price detail for resolved tokens.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Detail is a single token's current price information.
type Detail struct {
	Token string
	USD   decimal.Decimal
}

// Client queries the price API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a price client for the given API endpoint.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type priceResponse struct {
	Token string `json:"token"`
	USD   string `json:"usd"`
}

// Detail returns the USD price for a token address. A missing or empty price
// is reported as an error; the caller decides whether that is terminal.
func (c *Client) Detail(ctx context.Context, token string) (Detail, error) {
	endpoint := c.baseURL + "/v1/prices/" + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Detail{}, fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Detail{}, fmt.Errorf("price request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return Detail{}, fmt.Errorf("price API returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp priceResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Detail{}, fmt.Errorf("failed to decode price response: %w", err)
	}
	if resp.USD == "" {
		return Detail{}, fmt.Errorf("no price detail returned for %s", token)
	}
	usd, err := decimal.NewFromString(resp.USD)
	if err != nil {
		return Detail{}, fmt.Errorf("invalid price %q: %w", resp.USD, err)
	}
	if usd.Sign() <= 0 {
		return Detail{}, fmt.Errorf("non-positive price returned for %s", token)
	}
	return Detail{Token: token, USD: usd}, nil
}
