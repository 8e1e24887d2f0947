// Package chain wraps the EVM RPC surface the transfer engine reads from:
// balances, token metadata, allowances, fee estimates, and receipts.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// erc20ABI covers the read and write calls the engine needs against any
// standard token contract.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// TokenMetadata is the on-chain identity read from a token contract.
type TokenMetadata struct {
	Symbol   string
	Decimals int32
}

// FeeEstimate carries the network's current EIP-1559 fee suggestion.
type FeeEstimate struct {
	GasFeeCap *big.Int // max fee per gas
	GasTipCap *big.Int // max priority fee per gas
}

// Buffered returns a copy of the estimate with both fee-per-gas fields
// increased by pct percent.
func (f FeeEstimate) Buffered(pct int64) FeeEstimate {
	scale := func(v *big.Int) *big.Int {
		if v == nil {
			return nil
		}
		out := new(big.Int).Mul(v, big.NewInt(100+pct))
		return out.Div(out, big.NewInt(100))
	}
	return FeeEstimate{GasFeeCap: scale(f.GasFeeCap), GasTipCap: scale(f.GasTipCap)}
}

// Client reads chain state over a single RPC connection.
type Client struct {
	eth      *ethclient.Client
	erc20    abi.ABI
	chainID  *big.Int
	logger   *zap.Logger
	endpoint string
}

// Dial connects to the RPC endpoint and verifies the chain id.
func Dial(ctx context.Context, rpcURL string, chainID int64, logger *zap.Logger) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is not configured")
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &Client{
		eth:      eth,
		erc20:    parsed,
		chainID:  big.NewInt(chainID),
		logger:   logger,
		endpoint: rpcURL,
	}, nil
}

// ChainID returns the chain id the client was configured for.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Eth exposes the underlying ethclient for transaction submission.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// NativeBalance returns the wallet's native-currency balance in wei.
func (c *Client) NativeBalance(ctx context.Context, wallet string) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(wallet), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TokenBalance returns the wallet's balance of an ERC20 token in base units.
func (c *Client) TokenBalance(ctx context.Context, token, wallet string) (*big.Int, error) {
	out, err := c.callToken(ctx, token, "balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(out), nil
}

// Allowance returns how much of token the spender may currently move on the
// owner's behalf.
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	out, err := c.callToken(ctx, token, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}
	return new(big.Int).SetBytes(out), nil
}

// TokenMetadata reads symbol and decimals from a token contract.
func (c *Client) TokenMetadata(ctx context.Context, token string) (TokenMetadata, error) {
	symOut, err := c.callToken(ctx, token, "symbol")
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to call symbol: %w", err)
	}
	var symbol string
	if err := c.erc20.UnpackIntoInterface(&symbol, "symbol", symOut); err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to decode symbol: %w", err)
	}

	decOut, err := c.callToken(ctx, token, "decimals")
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to call decimals: %w", err)
	}
	var decimals uint8
	if err := c.erc20.UnpackIntoInterface(&decimals, "decimals", decOut); err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to decode decimals: %w", err)
	}

	return TokenMetadata{Symbol: symbol, Decimals: int32(decimals)}, nil
}

// PackApprove builds calldata approving spender for amount.
func (c *Client) PackApprove(spender string, amount *big.Int) ([]byte, error) {
	data, err := c.erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve data: %w", err)
	}
	return data, nil
}

// PackTransfer builds calldata transferring amount to the recipient.
func (c *Client) PackTransfer(to string, amount *big.Int) ([]byte, error) {
	data, err := c.erc20.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return data, nil
}

// SuggestFees returns the network's current fee estimate. Callers apply
// their own buffer policy via FeeEstimate.Buffered.
func (c *Client) SuggestFees(ctx context.Context) (FeeEstimate, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("failed to get chain head: %w", err)
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		// fee cap = 2 * base fee + tip, the usual headroom formula
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	return FeeEstimate{GasFeeCap: feeCap, GasTipCap: tip}, nil
}

// EstimateGas estimates the gas limit for a call.
func (c *Client) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	toAddr := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddr,
		Value: value,
		Data:  data,
	}
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// TransactionReceipt fetches the mined receipt for a hash. Returns
// ethereum.NotFound while the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
}

func (c *Client) callToken(ctx context.Context, token, method string, args ...any) ([]byte, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token contract address: %s", token)
	}
	data, err := c.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}
	tokenAddr := common.HexToAddress(token)
	msg := ethereum.CallMsg{To: &tokenAddr, Data: data}
	return c.eth.CallContract(ctx, msg, nil)
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}
