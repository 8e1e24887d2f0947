package transfer

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"tipcourier/pkg/errs"
	"tipcourier/pkg/types"
)

// feeBufferPercent pads the network fee estimate on approval and transfer
// transactions so a base-fee bump between estimate and inclusion does not
// strand them.
const feeBufferPercent = 20

// maxUint256 is the unlimited-approval amount. Approving once for the
// maximum avoids a second approval transaction on every later transfer
// through the same spender.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// AllowanceManager makes sure a spender contract may move the wallet's
// tokens before a swap is submitted.
type AllowanceManager struct {
	chain   ChainReader
	signer  Signer
	tracker *ConfirmationTracker
	logger  *zap.Logger
}

// NewAllowanceManager builds a manager that signs approvals with signer and
// waits for them to mine through tracker.
func NewAllowanceManager(chainReader ChainReader, signer Signer, tracker *ConfirmationTracker, logger *zap.Logger) *AllowanceManager {
	return &AllowanceManager{
		chain:   chainReader,
		signer:  signer,
		tracker: tracker,
		logger:  logger,
	}
}

// EnsureAllowance guarantees spender may move at least required of token on
// behalf of the acting wallet. Native transfers need no allowance and return
// immediately; a sufficient existing allowance is a no-op. Otherwise an
// unlimited approval is submitted and awaited before returning, since a swap
// sent before the approval mines would revert.
func (m *AllowanceManager) EnsureAllowance(ctx context.Context, token *types.ResolvedToken, spender string, required *big.Int) error {
	if token.IsNative() {
		return nil
	}
	if spender == "" {
		return nil
	}

	owner := m.signer.Address()
	current, err := m.chain.Allowance(ctx, token.Address, owner, spender)
	if err != nil {
		return errs.Wrap(errs.AllowanceFailure, "failed to read allowance for "+token.Symbol, err)
	}
	if current.Cmp(required) >= 0 {
		m.logger.Debug("existing allowance sufficient",
			zap.String("token", token.Symbol),
			zap.String("spender", spender))
		return nil
	}

	data, err := m.chain.PackApprove(spender, maxUint256)
	if err != nil {
		return errs.Wrap(errs.AllowanceFailure, "failed to build approval for "+token.Symbol, err)
	}

	fees, err := m.chain.SuggestFees(ctx)
	if err != nil {
		return errs.Wrap(errs.AllowanceFailure, "failed to estimate approval fees", err)
	}
	fees = fees.Buffered(feeBufferPercent)

	gasLimit, err := m.chain.EstimateGas(ctx, owner, token.Address, nil, data)
	if err != nil {
		return errs.Wrap(errs.AllowanceFailure, "failed to estimate approval gas", err)
	}

	hash, err := m.signer.SendTransaction(ctx, TxRequest{
		To:        token.Address,
		Data:      data,
		GasLimit:  gasLimit,
		GasFeeCap: fees.GasFeeCap,
		GasTipCap: fees.GasTipCap,
	})
	if err != nil {
		return errs.Wrap(errs.AllowanceFailure, "failed to submit approval for "+token.Symbol, err)
	}

	m.logger.Info("approval submitted, awaiting confirmation",
		zap.String("token", token.Symbol),
		zap.String("spender", spender),
		zap.String("hash", hash))

	status, err := m.tracker.AwaitConfirmation(ctx, hash)
	if err != nil {
		return errs.Wrap(errs.AllowanceFailure, "approval confirmation failed for "+token.Symbol, err)
	}
	if status != types.AttemptConfirmed {
		return errs.Ef(errs.AllowanceFailure, "approval %s for %s ended %s", hash, token.Symbol, status)
	}
	return nil
}
