package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"tipcourier/pkg/errs"
	"tipcourier/pkg/retry"
	"tipcourier/pkg/types"
)

// TransactionExecutor signs and broadcasts transfer and swap transactions,
// retrying transient submission failures with backoff. Retrying a failed
// SEND is safe: a transaction that never broadcast consumed no nonce.
type TransactionExecutor struct {
	chain  ChainReader
	signer Signer
	policy retry.Policy
	logger *zap.Logger
}

// NewTransactionExecutor builds an executor using policy for submission
// retries.
func NewTransactionExecutor(chainReader ChainReader, signer Signer, policy retry.Policy, logger *zap.Logger) *TransactionExecutor {
	return &TransactionExecutor{
		chain:  chainReader,
		signer: signer,
		policy: policy,
		logger: logger,
	}
}

// BuildNativeTransfer prepares a plain value transfer.
func (e *TransactionExecutor) BuildNativeTransfer(to string, amount *big.Int) TxRequest {
	return TxRequest{To: to, Value: amount}
}

// BuildTokenTransfer prepares an ERC20 transfer call.
func (e *TransactionExecutor) BuildTokenTransfer(token *types.ResolvedToken, to string, amount *big.Int) (TxRequest, error) {
	data, err := e.chain.PackTransfer(to, amount)
	if err != nil {
		return TxRequest{}, errs.Wrap(errs.SubmissionFailed, "failed to build transfer for "+token.Symbol, err)
	}
	return TxRequest{To: token.Address, Data: data}, nil
}

// BuildSwap prepares the quoted swap transaction. When the quote carries a
// typed-data payload, the taker's signature is appended to the calldata in
// the length-prefixed layout the settlement contract expects.
func (e *TransactionExecutor) BuildSwap(quote *types.SwapQuote) (TxRequest, error) {
	data := quote.Data
	if quote.Permit2 != nil {
		sig, err := e.signer.SignTypedData(quote.Permit2)
		if err != nil {
			return TxRequest{}, errs.Wrap(errs.SubmissionFailed, "failed to sign swap permit", err)
		}
		data = appendSignature(data, sig)
	}
	return TxRequest{
		To:       quote.To,
		Value:    quote.Value,
		Data:     data,
		GasLimit: quote.GasEstimate,
	}, nil
}

// appendSignature concatenates calldata, the signature length as a 32-byte
// word, and the signature bytes.
func appendSignature(data, sig []byte) []byte {
	length := new(big.Int).SetInt64(int64(len(sig)))
	out := make([]byte, 0, len(data)+32+len(sig))
	out = append(out, data...)
	out = append(out, length.FillBytes(make([]byte, 32))...)
	out = append(out, sig...)
	return out
}

// Submit broadcasts the request, retrying transient failures. Fees are
// re-estimated with a buffer on every attempt so a stale estimate from a
// failed attempt never carries over. A wallet that cannot cover gas aborts
// immediately: no retry can fund it.
func (e *TransactionExecutor) Submit(ctx context.Context, req TxRequest) (*types.TransactionAttempt, error) {
	attempt := &types.TransactionAttempt{Status: types.AttemptPending}

	hash, err := retry.DoWithResult(ctx, e.policy, e.logger, "submit_transaction", func(ctx context.Context) (string, error) {
		attempt.Attempts++

		fees, err := e.chain.SuggestFees(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to estimate fees: %w", err)
		}
		fees = fees.Buffered(feeBufferPercent)
		req.GasFeeCap = fees.GasFeeCap
		req.GasTipCap = fees.GasTipCap

		if req.GasLimit == 0 {
			gas, err := e.chain.EstimateGas(ctx, e.signer.Address(), req.To, req.Value, req.Data)
			if err != nil {
				if isGasFundsError(err) {
					return "", retry.Abort(errs.Wrap(errs.InsufficientGasFunds, "wallet cannot cover gas", err))
				}
				return "", fmt.Errorf("failed to estimate gas: %w", err)
			}
			req.GasLimit = gas
		}

		hash, err := e.signer.SendTransaction(ctx, req)
		if err != nil {
			if isGasFundsError(err) {
				return "", retry.Abort(errs.Wrap(errs.InsufficientGasFunds, "wallet cannot cover gas", err))
			}
			return "", err
		}
		return hash, nil
	})
	if err != nil {
		attempt.Status = types.AttemptSubmissionFailed
		if errs.KindOf(err) == errs.InsufficientGasFunds {
			return attempt, err
		}
		return attempt, errs.Wrap(errs.SubmissionFailed, "transaction submission exhausted retries", err)
	}

	attempt.Hash = hash
	e.logger.Info("transaction submitted",
		zap.String("hash", hash),
		zap.String("to", req.To),
		zap.Int("attempts", attempt.Attempts))
	return attempt, nil
}

// isGasFundsError recognizes the node rejecting a transaction because the
// wallet cannot pay for gas. Geth and most forks phrase it as below.
func isGasFundsError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient funds for gas") ||
		strings.Contains(msg, "insufficient funds for transfer") ||
		strings.Contains(msg, "insufficient balance for transfer")
}
