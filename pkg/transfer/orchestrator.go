package transfer

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tipcourier/pkg/errs"
	"tipcourier/pkg/quote"
	"tipcourier/pkg/types"
)

// Orchestrator drives each transfer intent through the full pipeline and
// returns a terminal outcome per item. Items in a batch run strictly in
// order; a failed item never stops the ones after it.
type Orchestrator struct {
	resolver   *Resolver
	calculator *AmountCalculator
	gate       *BalanceGate
	allowances *AllowanceManager
	executor   *TransactionExecutor
	tracker    *ConfirmationTracker
	quotes     QuoteProvider
	signer     Signer
	chain      ChainReader

	// explorerURL prefixes timeout guidance, e.g. "https://basescan.org/tx/".
	explorerURL string
	logger      *zap.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	resolver *Resolver,
	calculator *AmountCalculator,
	gate *BalanceGate,
	allowances *AllowanceManager,
	executor *TransactionExecutor,
	tracker *ConfirmationTracker,
	quotes QuoteProvider,
	signer Signer,
	chainReader ChainReader,
	explorerURL string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver:    resolver,
		calculator:  calculator,
		gate:        gate,
		allowances:  allowances,
		executor:    executor,
		tracker:     tracker,
		quotes:      quotes,
		signer:      signer,
		chain:       chainReader,
		explorerURL: strings.TrimRight(explorerURL, "/") + "/",
		logger:      logger,
	}
}

// ExecuteBatch runs every intent in order and returns one outcome per
// intent, index-aligned. Balances read during the batch are cached for its
// duration so repeated percentage items on one token cost a single read; the
// cache is discarded with the batch.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, intents []types.TransferIntent) []types.TransferOutcome {
	balances := NewBalanceCache(o.chain, o.signer.Address())

	outcomes := make([]types.TransferOutcome, 0, len(intents))
	for i, intent := range intents {
		outcome := o.Execute(ctx, intent, balances)
		o.logger.Info("transfer item finished",
			zap.Int("index", i),
			zap.String("id", outcome.ID),
			zap.Bool("success", outcome.Success),
			zap.String("stage", string(outcome.Stage)))
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Execute runs a single intent to a terminal outcome. It never panics and
// never returns early with a partial state: every path ends in Success or a
// classified failure.
func (o *Orchestrator) Execute(ctx context.Context, intent types.TransferIntent, balances *BalanceCache) types.TransferOutcome {
	outcome := types.TransferOutcome{
		ID:     uuid.NewString(),
		Intent: intent,
		Stage:  types.StageResolving,
	}

	switch intent.Kind {
	case "":
		// A bare intent is a send.
		intent.Kind = types.IntentSend
		outcome.Intent = intent
	case types.IntentSend, types.IntentSwap:
	default:
		return o.fail(outcome, errs.Ef(errs.InvalidAmount, "unknown intent kind %q", intent.Kind))
	}

	// Resolve the token being acquired and, for swaps, the token being spent.
	token, err := o.resolver.ResolveToken(ctx, intent.Token)
	if err != nil {
		return o.fail(outcome, err)
	}
	outcome.Token = token

	spendToken := token
	if intent.Kind == types.IntentSwap {
		spendToken, err = o.resolver.ResolveToken(ctx, intent.SellToken)
		if err != nil {
			return o.fail(outcome, err)
		}
	}

	recipient, err := o.resolveDestination(ctx, intent)
	if err != nil {
		return o.fail(outcome, err)
	}
	outcome.To = recipient

	// The amount is always denominated in the token being spent.
	amount, err := o.calculator.ComputeBaseUnits(ctx, intent.Amount, intent.Denomination, spendToken, balances)
	if err != nil {
		return o.fail(outcome, err)
	}
	outcome.Amount = amount
	outcome.Stage = types.StageAmountComputed

	excludeToken := ""
	if intent.Kind == types.IntentSwap {
		// Never propose funding a purchase with the token being purchased.
		excludeToken = token.Address
	}
	if err := o.gate.CheckSufficient(ctx, spendToken, amount, o.signer.Address(), balances, excludeToken); err != nil {
		return o.fail(outcome, err)
	}
	outcome.Stage = types.StageBalanceChecked

	var req TxRequest
	if intent.Kind == types.IntentSwap {
		req, err = o.prepareSwap(ctx, &outcome, spendToken, token, amount)
	} else {
		req, err = o.prepareSend(spendToken, recipient, amount)
		outcome.Stage = types.StageAllowanceChecked
	}
	if err != nil {
		return o.fail(outcome, err)
	}

	attempt, err := o.executor.Submit(ctx, req)
	outcome.Attempt = attempt
	if err != nil {
		return o.fail(outcome, err)
	}
	outcome.Stage = types.StageSubmitted

	status, err := o.tracker.AwaitConfirmation(ctx, attempt.Hash)
	attempt.Status = status
	if err != nil {
		return o.fail(outcome, errs.Wrap(errs.ConfirmationTimeout, "confirmation polling failed", err))
	}

	switch status {
	case types.AttemptConfirmed:
		outcome.Success = true
		return outcome
	case types.AttemptReverted:
		return o.fail(outcome, errs.Ef(errs.Reverted, "transaction %s reverted on-chain", attempt.Hash))
	default:
		return o.fail(outcome, errs.Ef(errs.ConfirmationTimeout,
			"transaction %s was not confirmed in time; it may still land, check %s%s before retrying",
			attempt.Hash, o.explorerURL, attempt.Hash))
	}
}

// resolveDestination picks the transfer destination. Swap proceeds always
// land in the acting wallet; the quoted settlement route cannot deliver to a
// third party.
func (o *Orchestrator) resolveDestination(ctx context.Context, intent types.TransferIntent) (*types.ResolvedRecipient, error) {
	if intent.Kind == types.IntentSwap {
		return &types.ResolvedRecipient{Address: o.signer.Address()}, nil
	}
	return o.resolver.ResolveRecipient(ctx, intent.Recipient)
}

// prepareSend builds the direct transfer transaction.
func (o *Orchestrator) prepareSend(token *types.ResolvedToken, to *types.ResolvedRecipient, amount *big.Int) (TxRequest, error) {
	if token.IsNative() {
		return o.executor.BuildNativeTransfer(to.Address, amount), nil
	}
	return o.executor.BuildTokenTransfer(token, to.Address, amount)
}

// prepareSwap quotes the pair, verifies liquidity, secures the allowance the
// settlement contract needs, and builds the swap transaction.
func (o *Orchestrator) prepareSwap(ctx context.Context, outcome *types.TransferOutcome, sellToken, buyToken *types.ResolvedToken, amount *big.Int) (TxRequest, error) {
	q, err := o.quotes.Get(ctx, sellToken.Address, buyToken.Address, amount, o.signer.Address())
	if err != nil {
		if errors.Is(err, quote.ErrBuyTokenNotAuthorized) {
			return TxRequest{}, errs.Ef(errs.BuyTokenNotAuthorized, "%s is not authorized for trading", buyToken.Symbol)
		}
		return TxRequest{}, errs.Wrap(errs.InsufficientLiquidity, "failed to quote "+sellToken.Symbol+" -> "+buyToken.Symbol, err)
	}
	if !q.LiquidityAvailable {
		return TxRequest{}, errs.Ef(errs.InsufficientLiquidity,
			"no route with enough liquidity to swap %s %s for %s",
			formatUnits(amount, sellToken.Decimals), sellToken.Symbol, buyToken.Symbol)
	}

	if err := o.allowances.EnsureAllowance(ctx, sellToken, q.AllowanceTarget, amount); err != nil {
		return TxRequest{}, err
	}
	outcome.Stage = types.StageAllowanceChecked

	return o.executor.BuildSwap(q)
}

// fail finalizes the outcome with a classified failure. Reason carries the
// human-readable detail, including alternative funding suggestions when an
// insufficient balance produced them.
func (o *Orchestrator) fail(outcome types.TransferOutcome, err error) types.TransferOutcome {
	outcome.Success = false
	outcome.Err = err

	var balErr *InsufficientBalanceError
	if errors.As(err, &balErr) {
		outcome.Reason = balErr.Detail()
	} else {
		var classified *errs.Error
		if errors.As(err, &classified) {
			outcome.Reason = classified.Detail
		} else {
			outcome.Reason = err.Error()
		}
	}

	o.logger.Warn("transfer item failed",
		zap.String("id", outcome.ID),
		zap.String("stage", string(outcome.Stage)),
		zap.String("kind", string(errs.KindOf(err))),
		zap.Error(err))
	return outcome
}
