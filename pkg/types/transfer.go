package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Denomination tags how the amount field of a TransferIntent is expressed.
type Denomination string

const (
	// DenominationAbsolute means the amount is a literal token quantity.
	DenominationAbsolute Denomination = "absolute"
	// DenominationPercentage means the amount is a fraction of the wallet balance, in (0, 100].
	DenominationPercentage Denomination = "percentage"
	// DenominationUSD means the amount is a US-dollar value to convert at the current price.
	DenominationUSD Denomination = "usd"
)

// IntentKind distinguishes a plain send from a swap acquisition.
type IntentKind string

const (
	// IntentSend moves the token directly to the recipient.
	IntentSend IntentKind = "send"
	// IntentSwap sells SellToken for Token via the quote provider; proceeds
	// land in the acting wallet.
	IntentSwap IntentKind = "swap"
)

// TransferIntent is a single structured transfer request as produced by the
// upstream intent-extraction service. It is immutable once created; every
// field is re-validated before use.
type TransferIntent struct {
	Kind         IntentKind
	Sender       string       // acting wallet address
	Recipient    string       // raw recipient reference: address, ENS name, or platform handle
	Token        string       // raw token reference; for swaps, the token being acquired
	SellToken    string       // raw reference of the token spent in a swap; unused for sends
	Amount       string       // numeric literal, meaning depends on Denomination
	Denomination Denomination
}

// TokenClass is the closed set of token kinds the engine understands.
type TokenClass int

const (
	TokenNative TokenClass = iota
	TokenERC20
	TokenCreatorCoin
)

func (c TokenClass) String() string {
	switch c {
	case TokenNative:
		return "native"
	case TokenERC20:
		return "erc20"
	case TokenCreatorCoin:
		return "creator_coin"
	default:
		return "unknown"
	}
}

// ResolvedToken is the normalized on-chain identity of a token reference.
// Address is preserved byte-for-byte from the input that produced it.
type ResolvedToken struct {
	Address  string
	Symbol   string
	Decimals int32
	Class    TokenClass

	// ReserveRate is only set for creator coins: the amount of reserve
	// currency one creator coin is worth, as quoted by the directory.
	ReserveRate decimal.Decimal
}

// IsNative reports whether the token is the chain's native currency.
func (t ResolvedToken) IsNative() bool {
	return t.Class == TokenNative
}

// ResolvedRecipient is the normalized on-chain destination of a transfer.
type ResolvedRecipient struct {
	Address string
}

// TypedDataPayload is an EIP-712 payload a quote provider may require the
// taker to sign before the swap transaction is valid.
type TypedDataPayload struct {
	Domain      map[string]any            `json:"domain"`
	Types       map[string][]TypedDataKey `json:"types"`
	Message     map[string]any            `json:"message"`
	PrimaryType string                    `json:"primaryType"`
}

// TypedDataKey is one field of an EIP-712 type definition.
type TypedDataKey struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SwapQuote is an executable quote returned by the quote provider.
type SwapQuote struct {
	SellToken          string
	BuyToken           string
	SellAmount         *big.Int
	BuyAmount          *big.Int
	LiquidityAvailable bool

	// AllowanceTarget is the spender that must be approved before the swap
	// can move the sell token. Empty when no approval is needed.
	AllowanceTarget string

	// Permit2 is set when the provider requires a typed-data signature to be
	// appended to the transaction payload.
	Permit2 *TypedDataPayload

	// Raw transaction payload.
	To          string
	Data        []byte
	Value       *big.Int
	GasEstimate uint64
}

// AttemptStatus is the terminal classification of a submitted transaction.
type AttemptStatus string

const (
	AttemptPending          AttemptStatus = "pending"
	AttemptConfirmed        AttemptStatus = "confirmed"
	AttemptReverted         AttemptStatus = "reverted"
	AttemptTimedOut         AttemptStatus = "timed_out"
	AttemptSubmissionFailed AttemptStatus = "submission_failed"
)

// TransactionAttempt records one submitted transaction and its fate. Each
// transfer item owns its own attempt; attempts are never reused across items.
type TransactionAttempt struct {
	Hash     string
	Attempts int
	Status   AttemptStatus
}

// Stage names the pipeline step a transfer item is in, for diagnostics.
type Stage string

const (
	StageResolving        Stage = "resolving"
	StageAmountComputed   Stage = "amount_computed"
	StageBalanceChecked   Stage = "balance_checked"
	StageAllowanceChecked Stage = "allowance_checked"
	StageSubmitted        Stage = "submitted"
)

// TransferOutcome is the per-item terminal result the orchestrator returns.
type TransferOutcome struct {
	ID      string // correlation id, unique per item
	Intent  TransferIntent
	Token   *ResolvedToken
	To      *ResolvedRecipient
	Amount  *big.Int // base units actually moved, nil when resolution failed
	Attempt *TransactionAttempt
	Stage   Stage // last stage reached
	Success bool
	Reason  string // human-readable detail on failure, or timeout guidance
	Err     error  // machine-readable failure, nil on success
}

// AlternativeHolding is a wallet holding proposed as a funding alternative
// when the requested token balance falls short.
type AlternativeHolding struct {
	Token    ResolvedToken
	Balance  *big.Int
	USDValue decimal.Decimal
}
