package transfer

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tipcourier/pkg/errs"
	"tipcourier/pkg/types"
)

// percentScale is the integer scale applied to percentages so the division
// below never touches floating point. floor(B * p*scale / (100*scale)) ==
// floor(B * p / 100) for every integral scaled percentage.
const percentScale = 1_000_000_000

// intermediatePrecision is the decimal precision carried through USD
// conversions before the final truncation to token decimals.
const intermediatePrecision = 36

// gasReservePercent replaces a 100% native-currency request so the wallet
// keeps funds for gas.
const gasReservePercent = 99

// BalanceCache memoizes per-token wallet balances for the lifetime of one
// batch, so multiple percentage-mode items on the same token cost one read.
type BalanceCache struct {
	chain  ChainReader
	wallet string

	mu       sync.Mutex
	balances map[string]*big.Int
}

// NewBalanceCache builds a cache bound to one wallet. Each batch owns its
// own cache; caches are never shared across batches.
func NewBalanceCache(chainReader ChainReader, wallet string) *BalanceCache {
	return &BalanceCache{
		chain:    chainReader,
		wallet:   wallet,
		balances: make(map[string]*big.Int),
	}
}

// Balance returns the wallet's balance of token in base units, reading the
// chain at most once per token per batch.
func (c *BalanceCache) Balance(ctx context.Context, token *types.ResolvedToken) (*big.Int, error) {
	key := strings.ToLower(token.Address)

	c.mu.Lock()
	cached, ok := c.balances[key]
	c.mu.Unlock()
	if ok {
		return new(big.Int).Set(cached), nil
	}

	var balance *big.Int
	var err error
	if token.IsNative() {
		balance, err = c.chain.NativeBalance(ctx, c.wallet)
	} else {
		balance, err = c.chain.TokenBalance(ctx, token.Address, c.wallet)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.balances[key] = new(big.Int).Set(balance)
	c.mu.Unlock()
	return balance, nil
}

// AmountCalculator converts denomination-tagged amount requests into exact
// integer base units. Nothing downstream of it ever sees a floating-point
// currency value.
type AmountCalculator struct {
	prices       PriceSource
	reserveToken string // price key for the creator-coin reserve currency
	logger       *zap.Logger
}

// NewAmountCalculator builds a calculator. reserveToken is the address used
// to price the reserve currency backing creator coins.
func NewAmountCalculator(prices PriceSource, reserveToken string, logger *zap.Logger) *AmountCalculator {
	return &AmountCalculator{
		prices:       prices,
		reserveToken: reserveToken,
		logger:       logger,
	}
}

// ComputeBaseUnits converts the amount literal into base units of the
// resolved token. The result is always strictly positive.
func (a *AmountCalculator) ComputeBaseUnits(ctx context.Context, amount string, denom types.Denomination, token *types.ResolvedToken, balances *BalanceCache) (*big.Int, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, errs.Wrap(errs.InvalidAmount, "malformed amount "+amount, err)
	}
	if value.Sign() <= 0 {
		return nil, errs.Ef(errs.InvalidAmount, "amount must be strictly positive, got %s", amount)
	}

	var result *big.Int
	switch denom {
	case types.DenominationAbsolute:
		result = value.Shift(token.Decimals).BigInt()
	case types.DenominationPercentage:
		result, err = a.percentageOfBalance(ctx, value, token, balances)
	case types.DenominationUSD:
		result, err = a.usdToBaseUnits(ctx, value, token)
	default:
		return nil, errs.Ef(errs.InvalidAmount, "unknown denomination %q", denom)
	}
	if err != nil {
		return nil, err
	}

	if result.Sign() <= 0 {
		return nil, errs.Ef(errs.InvalidAmount, "computed amount of %s is zero; balance or price too small", token.Symbol)
	}
	return result, nil
}

func (a *AmountCalculator) percentageOfBalance(ctx context.Context, pct decimal.Decimal, token *types.ResolvedToken, balances *BalanceCache) (*big.Int, error) {
	hundred := decimal.NewFromInt(100)
	if pct.GreaterThan(hundred) {
		return nil, errs.Ef(errs.InvalidAmount, "percentage must be in (0, 100], got %s", pct)
	}

	// Sending 100% of the native currency would leave nothing for gas.
	if token.IsNative() && pct.Equal(hundred) {
		pct = decimal.NewFromInt(gasReservePercent)
	}

	balance, err := balances.Balance(ctx, token)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidAmount, "failed to read balance of "+token.Symbol, err)
	}

	scaled := pct.Mul(decimal.NewFromInt(percentScale)).BigInt()
	result := new(big.Int).Mul(balance, scaled)
	return result.Div(result, big.NewInt(100*percentScale)), nil
}

func (a *AmountCalculator) usdToBaseUnits(ctx context.Context, usd decimal.Decimal, token *types.ResolvedToken) (*big.Int, error) {
	if token.Class == types.TokenCreatorCoin {
		return a.usdToCreatorUnits(ctx, usd, token)
	}

	detail, err := a.prices.Detail(ctx, token.Address)
	if err != nil {
		return nil, errs.Wrap(errs.PriceUnavailable, "no price detail for "+token.Symbol, err)
	}

	tokens := usd.DivRound(detail.USD, intermediatePrecision)
	return tokens.Shift(token.Decimals).BigInt(), nil
}

// usdToCreatorUnits converts in two hops: USD to reserve currency, then
// reserve currency to creator coin via the token's stored exchange rate.
// Truncation happens only at the final step.
func (a *AmountCalculator) usdToCreatorUnits(ctx context.Context, usd decimal.Decimal, token *types.ResolvedToken) (*big.Int, error) {
	if token.ReserveRate.Sign() <= 0 {
		return nil, errs.Ef(errs.PriceUnavailable, "creator coin %s has no exchange rate", token.Symbol)
	}

	detail, err := a.prices.Detail(ctx, a.reserveToken)
	if err != nil {
		return nil, errs.Wrap(errs.PriceUnavailable, "no price detail for reserve currency", err)
	}

	reserveTokens := usd.DivRound(detail.USD, intermediatePrecision)
	creatorTokens := reserveTokens.DivRound(token.ReserveRate, intermediatePrecision)
	return creatorTokens.Shift(token.Decimals).BigInt(), nil
}
