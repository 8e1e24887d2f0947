package transfer

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tipcourier/pkg/directory"
	"tipcourier/pkg/errs"
)

const (
	wethAddress = "0x4444444444444444444444444444444444444444"
	daiAddress  = "0x5555555555555555555555555555555555555555"
	pepeAddress = "0x6666666666666666666666666666666666666666"
)

func newTestGate(fd *fakeDirectory, prices *fakePrices) *BalanceGate {
	return NewBalanceGate(fd, prices, reserveAddress, zap.NewNop())
}

func TestCheckSufficientPasses(t *testing.T) {
	fc := newFakeChain()
	fc.tokenBalances[key(usdcAddress, walletAddress)] = big.NewInt(10_000_000)
	cache := NewBalanceCache(fc, walletAddress)
	gate := newTestGate(newFakeDirectory(), newFakePrices())

	err := gate.CheckSufficient(context.Background(), usdcToken(), big.NewInt(10_000_000), walletAddress, cache, "")
	assert.NoError(t, err)
}

func TestCheckSufficientShortfallWithAlternatives(t *testing.T) {
	fc := newFakeChain()
	fc.tokenBalances[key(usdcAddress, walletAddress)] = big.NewInt(4_000_000) // $4
	cache := NewBalanceCache(fc, walletAddress)

	fd := newFakeDirectory()
	fd.holdings[key(walletAddress)] = []directory.Holding{
		{TokenAddress: wethAddress, Symbol: "WETH", Decimals: 18, Balance: big.NewInt(1e16)}, // $30
		{TokenAddress: daiAddress, Symbol: "DAI", Decimals: 18, Balance: bigTokens(100, 18)}, // $100
		{TokenAddress: pepeAddress, Symbol: "PEPE", Decimals: 18, Balance: big.NewInt(1e18)}, // $2, below shortfall
		{TokenAddress: usdcAddress, Symbol: "USDC", Decimals: 6, Balance: big.NewInt(4_000_000)},
	}

	prices := newFakePrices()
	prices.set(usdcAddress, "1")
	prices.set(wethAddress, "3000")
	prices.set(daiAddress, "1")
	prices.set(pepeAddress, "2")

	gate := newTestGate(fd, prices)
	err := gate.CheckSufficient(context.Background(), usdcToken(), big.NewInt(10_000_000), walletAddress, cache, "")
	require.Error(t, err)
	assert.Equal(t, errs.InsufficientBalance, errs.KindOf(err))

	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, big.NewInt(6_000_000), balErr.Shortfall)
	assert.True(t, balErr.ShortfallUSD.Equal(decimal.RequireFromString("6")))

	// Ranked by USD value descending; the short token itself and the
	// too-small holding are excluded.
	require.Len(t, balErr.Alternatives, 2)
	assert.Equal(t, "DAI", balErr.Alternatives[0].Token.Symbol)
	assert.Equal(t, "WETH", balErr.Alternatives[1].Token.Symbol)
	assert.Contains(t, balErr.Detail(), "DAI")
}

func TestCheckSufficientCapsAlternativesAtThree(t *testing.T) {
	fc := newFakeChain()
	cache := NewBalanceCache(fc, walletAddress)

	fd := newFakeDirectory()
	prices := newFakePrices()
	prices.set(usdcAddress, "1")
	addrs := []string{wethAddress, daiAddress, pepeAddress, creatorAddress}
	for i, addr := range addrs {
		fd.holdings[key(walletAddress)] = append(fd.holdings[key(walletAddress)], directory.Holding{
			TokenAddress: addr,
			Symbol:       "ALT",
			Decimals:     18,
			Balance:      bigTokens(int64(10+i), 18),
		})
		prices.set(addr, "100")
	}

	gate := newTestGate(fd, prices)
	err := gate.CheckSufficient(context.Background(), usdcToken(), big.NewInt(1_000_000), walletAddress, cache, "")
	require.Error(t, err)

	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Len(t, balErr.Alternatives, maxAlternativeSuggestions)
}

func TestCheckSufficientExcludesBuyToken(t *testing.T) {
	fc := newFakeChain()
	cache := NewBalanceCache(fc, walletAddress)

	fd := newFakeDirectory()
	fd.holdings[key(walletAddress)] = []directory.Holding{
		{TokenAddress: wethAddress, Symbol: "WETH", Decimals: 18, Balance: bigTokens(1, 18)},
	}
	prices := newFakePrices()
	prices.set(usdcAddress, "1")
	prices.set(wethAddress, "3000")

	gate := newTestGate(fd, prices)
	err := gate.CheckSufficient(context.Background(), usdcToken(), big.NewInt(1_000_000), walletAddress, cache, wethAddress)
	require.Error(t, err)

	// Proposing the token being bought as a funding source would be circular.
	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Empty(t, balErr.Alternatives)
}

func TestCheckSufficientUnpriceableShortfall(t *testing.T) {
	fc := newFakeChain()
	cache := NewBalanceCache(fc, walletAddress)
	gate := newTestGate(newFakeDirectory(), newFakePrices())

	err := gate.CheckSufficient(context.Background(), usdcToken(), big.NewInt(5_000_000), walletAddress, cache, "")
	require.Error(t, err)
	assert.Equal(t, errs.InsufficientBalance, errs.KindOf(err))

	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Empty(t, balErr.Alternatives)
	assert.Contains(t, balErr.Detail(), "5")
	assert.Contains(t, balErr.Detail(), "USDC")
}
