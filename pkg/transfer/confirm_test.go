package transfer

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tipcourier/pkg/retry"
	"tipcourier/pkg/types"
)

func successReceipt(block int64) *ethtypes.Receipt {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(block)}
}

func revertedReceipt(block int64) *ethtypes.Receipt {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(block)}
}

func newTestTracker(fc *fakeChain) *ConfirmationTracker {
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	return NewConfirmationTracker(fc, policy, 20*time.Millisecond, zap.NewNop())
}

func TestAwaitConfirmationConfirmed(t *testing.T) {
	fc := newFakeChain()
	fc.receipts[key("0xabc")] = successReceipt(100)
	tracker := newTestTracker(fc)

	status, err := tracker.AwaitConfirmation(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.AttemptConfirmed, status)
}

func TestAwaitConfirmationReverted(t *testing.T) {
	fc := newFakeChain()
	fc.receipts[key("0xabc")] = revertedReceipt(100)
	tracker := newTestTracker(fc)

	status, err := tracker.AwaitConfirmation(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.AttemptReverted, status)
}

func TestAwaitConfirmationTimesOut(t *testing.T) {
	tracker := newTestTracker(newFakeChain())

	// No receipt ever appears; the bounded polling windows must end in a
	// timeout classification, not an error.
	status, err := tracker.AwaitConfirmation(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Equal(t, types.AttemptTimedOut, status)
}

func TestAwaitConfirmationHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker := newTestTracker(newFakeChain())

	status, _ := tracker.AwaitConfirmation(ctx, "0xmissing")
	assert.Equal(t, types.AttemptTimedOut, status)
}
