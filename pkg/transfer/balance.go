package transfer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tipcourier/pkg/errs"
	"tipcourier/pkg/types"
)

// maxAlternativeSuggestions caps how many alternative funding tokens an
// insufficient-balance failure proposes.
const maxAlternativeSuggestions = 3

// InsufficientBalanceError reports a failed balance check together with up
// to three alternative tokens worth more than the shortfall, so the caller
// can offer a different funding source.
type InsufficientBalanceError struct {
	Token        types.ResolvedToken
	Required     *big.Int
	Balance      *big.Int
	Shortfall    *big.Int
	ShortfallUSD decimal.Decimal
	Alternatives []types.AlternativeHolding
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("INSUFFICIENT_BALANCE: %s", e.Detail())
}

// Unwrap keeps the error classifiable through the shared taxonomy.
func (e *InsufficientBalanceError) Unwrap() error {
	return errs.E(errs.InsufficientBalance, e.Detail())
}

// Detail renders the human-readable failure message, naming alternatives
// when any exist and the literal token shortfall otherwise.
func (e *InsufficientBalanceError) Detail() string {
	short := formatUnits(e.Shortfall, e.Token.Decimals)
	if len(e.Alternatives) == 0 {
		return fmt.Sprintf("wallet is short %s %s (has %s, needs %s)",
			short, e.Token.Symbol,
			formatUnits(e.Balance, e.Token.Decimals),
			formatUnits(e.Required, e.Token.Decimals))
	}
	names := make([]string, 0, len(e.Alternatives))
	for _, alt := range e.Alternatives {
		names = append(names, fmt.Sprintf("%s ($%s)", alt.Token.Symbol, alt.USDValue.StringFixed(2)))
	}
	return fmt.Sprintf("wallet is short %s %s; could fund from %s instead",
		short, e.Token.Symbol, strings.Join(names, ", "))
}

// BalanceGate verifies the acting wallet can cover a computed amount and,
// when it cannot, proposes viable alternative funding tokens.
type BalanceGate struct {
	dir          Directory
	prices       PriceSource
	reserveToken string
	logger       *zap.Logger
}

// NewBalanceGate builds a gate. reserveToken prices creator-coin holdings.
func NewBalanceGate(dir Directory, prices PriceSource, reserveToken string, logger *zap.Logger) *BalanceGate {
	return &BalanceGate{
		dir:          dir,
		prices:       prices,
		reserveToken: reserveToken,
		logger:       logger,
	}
}

// CheckSufficient returns nil when the wallet holds at least required of
// token. excludeToken names the token being acquired in a swap, which is
// never proposed as an alternative funding source.
func (g *BalanceGate) CheckSufficient(ctx context.Context, token *types.ResolvedToken, required *big.Int, wallet string, balances *BalanceCache, excludeToken string) error {
	balance, err := balances.Balance(ctx, token)
	if err != nil {
		return errs.Wrap(errs.InsufficientBalance, "failed to read balance of "+token.Symbol, err)
	}
	if balance.Cmp(required) >= 0 {
		return nil
	}

	shortfall := new(big.Int).Sub(required, balance)
	failure := &InsufficientBalanceError{
		Token:     *token,
		Required:  new(big.Int).Set(required),
		Balance:   new(big.Int).Set(balance),
		Shortfall: shortfall,
	}

	shortfallUSD, err := g.usdValue(ctx, token.Address, token.Class, token.ReserveRate, shortfall, token.Decimals)
	if err != nil {
		// Without a price we cannot rank alternatives; report the literal
		// token shortfall.
		g.logger.Debug("no price for shortfall token, skipping alternatives",
			zap.String("token", token.Symbol),
			zap.Error(err))
		return failure
	}
	failure.ShortfallUSD = shortfallUSD

	failure.Alternatives = g.alternativeHoldings(ctx, wallet, token, shortfallUSD, excludeToken)
	return failure
}

// alternativeHoldings scans the wallet for tokens whose USD value exceeds
// the shortfall, ranked by descending value.
func (g *BalanceGate) alternativeHoldings(ctx context.Context, wallet string, short *types.ResolvedToken, shortfallUSD decimal.Decimal, excludeToken string) []types.AlternativeHolding {
	holdings, err := g.dir.Holdings(ctx, wallet)
	if err != nil {
		g.logger.Debug("failed to list wallet holdings", zap.Error(err))
		return nil
	}

	candidates := make([]types.AlternativeHolding, 0, len(holdings))
	for _, h := range holdings {
		if h.Balance == nil || h.Balance.Sign() <= 0 {
			continue
		}
		if strings.EqualFold(h.TokenAddress, short.Address) {
			continue
		}
		if excludeToken != "" && strings.EqualFold(h.TokenAddress, excludeToken) {
			continue
		}

		value, err := g.usdValue(ctx, h.TokenAddress, types.TokenERC20, decimal.Zero, h.Balance, h.Decimals)
		if err != nil {
			continue
		}
		if value.LessThanOrEqual(shortfallUSD) {
			continue
		}
		candidates = append(candidates, types.AlternativeHolding{
			Token: types.ResolvedToken{
				Address:  h.TokenAddress,
				Symbol:   h.Symbol,
				Decimals: h.Decimals,
				Class:    types.TokenERC20,
			},
			Balance:  h.Balance,
			USDValue: value,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].USDValue.GreaterThan(candidates[j].USDValue)
	})
	if len(candidates) > maxAlternativeSuggestions {
		candidates = candidates[:maxAlternativeSuggestions]
	}
	return candidates
}

// usdValue prices an integer base-unit amount of a token in USD. Creator
// coins price through the reserve currency and their stored exchange rate.
func (g *BalanceGate) usdValue(ctx context.Context, tokenAddr string, class types.TokenClass, reserveRate decimal.Decimal, amount *big.Int, decimals int32) (decimal.Decimal, error) {
	units := decimal.NewFromBigInt(amount, -decimals)

	if class == types.TokenCreatorCoin {
		if reserveRate.Sign() <= 0 {
			return decimal.Zero, fmt.Errorf("creator coin %s has no exchange rate", tokenAddr)
		}
		detail, err := g.prices.Detail(ctx, g.reserveToken)
		if err != nil {
			return decimal.Zero, err
		}
		return units.Mul(reserveRate).Mul(detail.USD), nil
	}

	detail, err := g.prices.Detail(ctx, tokenAddr)
	if err != nil {
		return decimal.Zero, err
	}
	return units.Mul(detail.USD), nil
}

// formatUnits renders base units as a whole-token decimal string with
// trailing zeros stripped.
func formatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}
