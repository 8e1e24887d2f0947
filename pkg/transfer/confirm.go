package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"tipcourier/pkg/retry"
	"tipcourier/pkg/types"
)

// errNoReceipt marks a polling window that elapsed without a receipt; the
// retry combinator treats it as retryable.
var errNoReceipt = errors.New("no receipt within polling window")

// ConfirmationTracker polls the chain for a mined receipt and classifies
// the terminal state. A timed-out wait is never resubmission: the same hash
// is re-polled on every attempt.
type ConfirmationTracker struct {
	chain          ChainReader
	policy         retry.Policy
	attemptTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

// NewConfirmationTracker builds a tracker. attemptTimeout bounds a single
// polling window; policy bounds how many windows are tried.
func NewConfirmationTracker(chainReader ChainReader, policy retry.Policy, attemptTimeout time.Duration, logger *zap.Logger) *ConfirmationTracker {
	return &ConfirmationTracker{
		chain:          chainReader,
		policy:         policy,
		attemptTimeout: attemptTimeout,
		pollInterval:   2 * time.Second,
		logger:         logger,
	}
}

// AwaitConfirmation blocks until the transaction is mined or every polling
// window is exhausted. It always reaches a terminal classification:
// AttemptConfirmed, AttemptReverted, or AttemptTimedOut. A timeout is not a
// failure; the transaction may still confirm later.
func (t *ConfirmationTracker) AwaitConfirmation(ctx context.Context, txHash string) (types.AttemptStatus, error) {
	receipt, err := retry.DoWithResult(ctx, t.policy, t.logger, "await_receipt", func(ctx context.Context) (*ethtypes.Receipt, error) {
		return t.pollOnce(ctx, txHash)
	})
	if err != nil {
		if errors.Is(err, errNoReceipt) {
			t.logger.Info("no receipt observed within confirmation budget",
				zap.String("hash", txHash))
			return types.AttemptTimedOut, nil
		}
		return types.AttemptTimedOut, fmt.Errorf("receipt polling failed for %s: %w", txHash, err)
	}

	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		t.logger.Info("transaction confirmed",
			zap.String("hash", txHash),
			zap.Uint64("block", receipt.BlockNumber.Uint64()))
		return types.AttemptConfirmed, nil
	}

	t.logger.Warn("transaction reverted",
		zap.String("hash", txHash),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))
	return types.AttemptReverted, nil
}

// pollOnce watches for a receipt for at most one attemptTimeout window.
func (t *ConfirmationTracker) pollOnce(ctx context.Context, txHash string) (*ethtypes.Receipt, error) {
	window, cancel := context.WithTimeout(ctx, t.attemptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.chain.TransactionReceipt(window, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		select {
		case <-window.Done():
			// The outer context ending is terminal, not retryable.
			if ctx.Err() != nil {
				return nil, retry.Abort(ctx.Err())
			}
			return nil, errNoReceipt
		case <-ticker.C:
		}
	}
}
