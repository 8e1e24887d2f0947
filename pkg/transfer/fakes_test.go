package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"tipcourier/pkg/chain"
	"tipcourier/pkg/directory"
	"tipcourier/pkg/price"
	"tipcourier/pkg/types"
	"tipcourier/pkg/wallet"
)

// fakeChain is an in-memory ChainReader. Maps are keyed by lowercase
// addresses; zero-value fields behave like an empty chain.
type fakeChain struct {
	mu sync.Mutex

	nativeBalances map[string]*big.Int
	tokenBalances  map[string]*big.Int // token|wallet
	metadata       map[string]chain.TokenMetadata
	allowances     map[string]*big.Int // token|owner|spender
	receipts       map[string]*ethtypes.Receipt
	ensNames       map[string]string

	resolveNameErr error
	estimateGasErr error
	suggestFeesErr error

	nativeBalanceReads int
	tokenBalanceReads  int

	lastApproveSpender string
	lastApproveAmount  *big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		nativeBalances: make(map[string]*big.Int),
		tokenBalances:  make(map[string]*big.Int),
		metadata:       make(map[string]chain.TokenMetadata),
		allowances:     make(map[string]*big.Int),
		receipts:       make(map[string]*ethtypes.Receipt),
		ensNames:       make(map[string]string),
	}
}

// bigTokens returns n whole tokens in base units.
func bigTokens(n int64, decimals int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

func key(parts ...string) string {
	lowered := make([]string, len(parts))
	for i, p := range parts {
		lowered[i] = strings.ToLower(p)
	}
	return strings.Join(lowered, "|")
}

func (f *fakeChain) NativeBalance(_ context.Context, wallet string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nativeBalanceReads++
	if bal, ok := f.nativeBalances[key(wallet)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) TokenBalance(_ context.Context, token, wallet string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenBalanceReads++
	if bal, ok := f.tokenBalances[key(token, wallet)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) TokenMetadata(_ context.Context, token string) (chain.TokenMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if meta, ok := f.metadata[key(token)]; ok {
		return meta, nil
	}
	return chain.TokenMetadata{}, fmt.Errorf("no contract at %s", token)
}

func (f *fakeChain) Allowance(_ context.Context, token, owner, spender string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.allowances[key(token, owner, spender)]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) SuggestFees(_ context.Context) (chain.FeeEstimate, error) {
	if f.suggestFeesErr != nil {
		return chain.FeeEstimate{}, f.suggestFeesErr
	}
	return chain.FeeEstimate{GasFeeCap: big.NewInt(2_000_000_000), GasTipCap: big.NewInt(100_000_000)}, nil
}

func (f *fakeChain) EstimateGas(_ context.Context, _, _ string, _ *big.Int, _ []byte) (uint64, error) {
	if f.estimateGasErr != nil {
		return 0, f.estimateGasErr
	}
	return 50_000, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, txHash string) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[key(txHash)]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) PackApprove(spender string, amount *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastApproveSpender = spender
	f.lastApproveAmount = new(big.Int).Set(amount)
	return []byte("approve:" + spender), nil
}

func (f *fakeChain) PackTransfer(to string, amount *big.Int) ([]byte, error) {
	return []byte("transfer:" + to + ":" + amount.String()), nil
}

func (f *fakeChain) ResolveName(_ context.Context, name string) (string, error) {
	if f.resolveNameErr != nil {
		return "", f.resolveNameErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr, ok := f.ensNames[strings.ToLower(name)]; ok {
		return addr, nil
	}
	return "", fmt.Errorf("no resolver for %s", name)
}

// fakeSigner records submitted requests and returns scripted hashes.
type fakeSigner struct {
	mu      sync.Mutex
	address string
	sent    []wallet.TxRequest
	hashes  []string // consumed in order; last one repeats
	sendErr []error  // consumed in order; nil entries succeed
	sigErr  error
}

func newFakeSigner(address string) *fakeSigner {
	return &fakeSigner{address: address, hashes: []string{"0xhash1"}}
}

func (s *fakeSigner) Address() string { return s.address }

func (s *fakeSigner) SendTransaction(_ context.Context, req wallet.TxRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt := len(s.sent)
	s.sent = append(s.sent, req)
	if attempt < len(s.sendErr) && s.sendErr[attempt] != nil {
		return "", s.sendErr[attempt]
	}
	if attempt < len(s.hashes) {
		return s.hashes[attempt], nil
	}
	return s.hashes[len(s.hashes)-1], nil
}

func (s *fakeSigner) SignTypedData(_ *types.TypedDataPayload) ([]byte, error) {
	if s.sigErr != nil {
		return nil, s.sigErr
	}
	return []byte("typed-data-signature"), nil
}

// fakeDirectory serves handle lookups from maps.
type fakeDirectory struct {
	wallets  map[string]string
	creators map[string]directory.CreatorToken
	holdings map[string][]directory.Holding
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		wallets:  make(map[string]string),
		creators: make(map[string]directory.CreatorToken),
		holdings: make(map[string][]directory.Holding),
	}
}

func (d *fakeDirectory) WalletByHandle(_ context.Context, handle string) (string, error) {
	if addr, ok := d.wallets[handle]; ok {
		return addr, nil
	}
	return "", directory.ErrNotFound
}

func (d *fakeDirectory) CreatorToken(_ context.Context, handle string) (directory.CreatorToken, error) {
	if tok, ok := d.creators[handle]; ok {
		return tok, nil
	}
	return directory.CreatorToken{}, directory.ErrNotFound
}

func (d *fakeDirectory) Holdings(_ context.Context, wallet string) ([]directory.Holding, error) {
	return d.holdings[strings.ToLower(wallet)], nil
}

// fakePrices serves USD prices from a map keyed by lowercase token address.
type fakePrices struct {
	prices map[string]decimal.Decimal
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: make(map[string]decimal.Decimal)}
}

func (p *fakePrices) set(token string, usd string) {
	p.prices[strings.ToLower(token)] = decimal.RequireFromString(usd)
}

func (p *fakePrices) Detail(_ context.Context, token string) (price.Detail, error) {
	if usd, ok := p.prices[strings.ToLower(token)]; ok {
		return price.Detail{Token: token, USD: usd}, nil
	}
	return price.Detail{}, fmt.Errorf("no price for %s", token)
}

// fakeQuotes returns a scripted quote or error.
type fakeQuotes struct {
	quote *types.SwapQuote
	err   error
	calls int
}

func (q *fakeQuotes) Get(_ context.Context, sellToken, buyToken string, sellAmount *big.Int, _ string) (*types.SwapQuote, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	quote := *q.quote
	quote.SellToken = sellToken
	quote.BuyToken = buyToken
	quote.SellAmount = sellAmount
	return &quote, nil
}
