// Package directory looks platform users up by handle: their custodial
// wallet and, for creators, the token issued against them.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the directory has no record for a handle.
var ErrNotFound = errors.New("directory: not found")

// CreatorToken describes the coin issued against a platform creator.
type CreatorToken struct {
	Address string
	Symbol  string
	// ReserveRate is how much reserve currency one creator coin is worth.
	ReserveRate decimal.Decimal
}

// Client queries the platform user directory over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a directory client for the given API endpoint.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Holding is one token position in a wallet, as reported by the custodial
// ledger.
type Holding struct {
	TokenAddress string
	Symbol       string
	Decimals     int32
	Balance      *big.Int
}

type userResponse struct {
	Handle        string `json:"handle"`
	WalletAddress string `json:"wallet_address"`
}

type creatorTokenResponse struct {
	Handle       string `json:"handle"`
	TokenAddress string `json:"token_address"`
	TokenSymbol  string `json:"token_symbol"`
	ReserveRate  string `json:"reserve_rate"`
}

// WalletByHandle returns the custodial wallet address on file for a handle.
// Returns ErrNotFound when the user exists without a wallet, or not at all.
func (c *Client) WalletByHandle(ctx context.Context, handle string) (string, error) {
	var resp userResponse
	if err := c.get(ctx, "/v1/users/"+url.PathEscape(handle), &resp); err != nil {
		return "", err
	}
	if resp.WalletAddress == "" {
		return "", ErrNotFound
	}
	return resp.WalletAddress, nil
}

// CreatorToken returns the coin issued against a creator handle. Returns
// ErrNotFound when the handle has no issued token.
func (c *Client) CreatorToken(ctx context.Context, handle string) (CreatorToken, error) {
	var resp creatorTokenResponse
	if err := c.get(ctx, "/v1/creators/"+url.PathEscape(handle)+"/token", &resp); err != nil {
		return CreatorToken{}, err
	}
	if resp.TokenAddress == "" {
		return CreatorToken{}, ErrNotFound
	}
	rate, err := decimal.NewFromString(resp.ReserveRate)
	if err != nil {
		return CreatorToken{}, fmt.Errorf("invalid reserve rate %q: %w", resp.ReserveRate, err)
	}
	return CreatorToken{
		Address:     resp.TokenAddress,
		Symbol:      resp.TokenSymbol,
		ReserveRate: rate,
	}, nil
}

type holdingResponse struct {
	TokenAddress string `json:"token_address"`
	Symbol       string `json:"symbol"`
	Decimals     int32  `json:"decimals"`
	Balance      string `json:"balance"`
}

// Holdings lists every token position the ledger tracks for a wallet.
// Entries with unparseable balances are skipped rather than failing the call.
func (c *Client) Holdings(ctx context.Context, walletAddr string) ([]Holding, error) {
	var resp []holdingResponse
	if err := c.get(ctx, "/v1/wallets/"+url.PathEscape(walletAddr)+"/holdings", &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	holdings := make([]Holding, 0, len(resp))
	for _, h := range resp {
		balance, ok := new(big.Int).SetString(h.Balance, 10)
		if !ok {
			c.logger.Warn("skipping holding with unparseable balance",
				zap.String("token", h.TokenAddress),
				zap.String("balance", h.Balance))
			continue
		}
		holdings = append(holdings, Holding{
			TokenAddress: h.TokenAddress,
			Symbol:       h.Symbol,
			Decimals:     h.Decimals,
			Balance:      balance,
		})
	}
	return holdings, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("directory returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}
