// Package quote wraps the external swap-quote provider. The engine only
// relies on the narrow capability "get executable quote for token pair".
package quote

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

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"tipcourier/pkg/types"
)

// ErrBuyTokenNotAuthorized is returned when the provider rejects the buy
// token outright rather than reporting missing liquidity.
var ErrBuyTokenNotAuthorized = errors.New("quote: buy token not authorized")

// Client queries the swap-quote API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	chainID    int64
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a quote client for the given API endpoint and chain.
func NewClient(baseURL, apiKey string, chainID int64, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

type quoteResponse struct {
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	SellAmount         string `json:"sellAmount"`
	BuyAmount          string `json:"buyAmount"`
	AllowanceTarget    string `json:"allowanceTarget"`
	Permit2            *struct {
		EIP712 *types.TypedDataPayload `json:"eip712"`
	} `json:"permit2"`
	Transaction struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
		Gas   string `json:"gas"`
	} `json:"transaction"`
}

type quoteErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Get returns an executable quote selling sellAmount of sellToken for
// buyToken on behalf of taker.
func (c *Client) Get(ctx context.Context, sellToken, buyToken string, sellAmount *big.Int, taker string) (*types.SwapQuote, error) {
	params := url.Values{}
	params.Set("chainId", fmt.Sprintf("%d", c.chainID))
	params.Set("sellToken", sellToken)
	params.Set("buyToken", buyToken)
	params.Set("sellAmount", sellAmount.String())
	params.Set("taker", taker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("0x-api-key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(httpResp.Body)
		var errResp quoteErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
			if strings.EqualFold(errResp.Code, "BUY_TOKEN_NOT_AUTHORIZED_FOR_TRADE") {
				return nil, fmt.Errorf("%w: %s", ErrBuyTokenNotAuthorized, buyToken)
			}
			if errResp.Message != "" {
				return nil, fmt.Errorf("quote API error (status %d): %s", httpResp.StatusCode, errResp.Message)
			}
		}
		return nil, fmt.Errorf("quote API returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp quoteResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	return c.toSwapQuote(sellToken, buyToken, &resp)
}

func (c *Client) toSwapQuote(sellToken, buyToken string, resp *quoteResponse) (*types.SwapQuote, error) {
	q := &types.SwapQuote{
		SellToken:          sellToken,
		BuyToken:           buyToken,
		LiquidityAvailable: resp.LiquidityAvailable,
		AllowanceTarget:    resp.AllowanceTarget,
		To:                 resp.Transaction.To,
	}
	if !resp.LiquidityAvailable {
		// Nothing else in the payload is meaningful without liquidity.
		return q, nil
	}

	var ok bool
	if q.SellAmount, ok = new(big.Int).SetString(resp.SellAmount, 10); !ok {
		return nil, fmt.Errorf("invalid sell amount in quote: %q", resp.SellAmount)
	}
	if q.BuyAmount, ok = new(big.Int).SetString(resp.BuyAmount, 10); !ok {
		return nil, fmt.Errorf("invalid buy amount in quote: %q", resp.BuyAmount)
	}

	if resp.Permit2 != nil {
		q.Permit2 = resp.Permit2.EIP712
	}

	if resp.Transaction.Data != "" {
		data, err := hexutil.Decode(resp.Transaction.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction data in quote: %w", err)
		}
		q.Data = data
	}
	q.Value = big.NewInt(0)
	if resp.Transaction.Value != "" {
		if q.Value, ok = new(big.Int).SetString(resp.Transaction.Value, 10); !ok {
			return nil, fmt.Errorf("invalid transaction value in quote: %q", resp.Transaction.Value)
		}
	}
	if resp.Transaction.Gas != "" {
		gas, ok := new(big.Int).SetString(resp.Transaction.Gas, 10)
		if !ok {
			return nil, fmt.Errorf("invalid gas estimate in quote: %q", resp.Transaction.Gas)
		}
		q.GasEstimate = gas.Uint64()
	}
	return q, nil
}
