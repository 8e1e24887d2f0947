// Package transfer resolves structured transfer intents into executed,
// confirmed on-chain transactions. The pipeline per item is: resolve
// identifiers, compute base units, gate on balance, (for swaps) quote,
// ensure allowance, submit, confirm. Items in a batch run strictly
// sequentially so the wallet's nonce sequence never races.
package transfer

import (
	"context"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"tipcourier/pkg/chain"
	"tipcourier/pkg/directory"
	"tipcourier/pkg/price"
	"tipcourier/pkg/types"
	"tipcourier/pkg/wallet"
)

// ChainReader is the chain read surface the engine depends on. Implemented
// by chain.Client; faked in tests.
type ChainReader interface {
	NativeBalance(ctx context.Context, wallet string) (*big.Int, error)
	TokenBalance(ctx context.Context, token, wallet string) (*big.Int, error)
	TokenMetadata(ctx context.Context, token string) (chain.TokenMetadata, error)
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
	SuggestFees(ctx context.Context) (chain.FeeEstimate, error)
	EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash string) (*ethtypes.Receipt, error)
	PackApprove(spender string, amount *big.Int) ([]byte, error)
	PackTransfer(to string, amount *big.Int) ([]byte, error)
	ResolveName(ctx context.Context, name string) (string, error)
}

// Directory looks platform users up by handle.
type Directory interface {
	WalletByHandle(ctx context.Context, handle string) (string, error)
	CreatorToken(ctx context.Context, handle string) (directory.CreatorToken, error)
	Holdings(ctx context.Context, wallet string) ([]directory.Holding, error)
}

// PriceSource returns USD price detail for a token address.
type PriceSource interface {
	Detail(ctx context.Context, token string) (price.Detail, error)
}

// QuoteProvider returns an executable swap quote.
type QuoteProvider interface {
	Get(ctx context.Context, sellToken, buyToken string, sellAmount *big.Int, taker string) (*types.SwapQuote, error)
}

// Signer and TxRequest are re-exported so callers wire one dependency bundle.
type (
	Signer    = wallet.Signer
	TxRequest = wallet.TxRequest
)
