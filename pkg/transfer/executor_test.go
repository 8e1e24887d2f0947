package transfer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tipcourier/pkg/errs"
	"tipcourier/pkg/retry"
	"tipcourier/pkg/types"
)

func testSubmitPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestSubmitSucceedsFirstAttempt(t *testing.T) {
	fc := newFakeChain()
	signer := newFakeSigner(walletAddress)
	exec := NewTransactionExecutor(fc, signer, testSubmitPolicy(), zap.NewNop())

	attempt, err := exec.Submit(context.Background(), exec.BuildNativeTransfer(usdcAddress, big.NewInt(1)))
	require.NoError(t, err)

	assert.Equal(t, "0xhash1", attempt.Hash)
	assert.Equal(t, 1, attempt.Attempts)
	require.Len(t, signer.sent, 1)
	// Fees carry the configured buffer over the suggestion.
	assert.Equal(t, big.NewInt(2_400_000_000), signer.sent[0].GasFeeCap)
}

func TestSubmitRetriesTransientFailure(t *testing.T) {
	fc := newFakeChain()
	signer := newFakeSigner(walletAddress)
	signer.sendErr = []error{errors.New("nonce too low"), errors.New("connection reset")}
	exec := NewTransactionExecutor(fc, signer, testSubmitPolicy(), zap.NewNop())

	attempt, err := exec.Submit(context.Background(), exec.BuildNativeTransfer(usdcAddress, big.NewInt(1)))
	require.NoError(t, err)

	assert.Equal(t, 3, attempt.Attempts)
	assert.Equal(t, "0xhash1", attempt.Hash)
}

func TestSubmitExhaustsRetries(t *testing.T) {
	fc := newFakeChain()
	signer := newFakeSigner(walletAddress)
	signer.sendErr = []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}
	exec := NewTransactionExecutor(fc, signer, testSubmitPolicy(), zap.NewNop())

	attempt, err := exec.Submit(context.Background(), exec.BuildNativeTransfer(usdcAddress, big.NewInt(1)))
	require.Error(t, err)

	assert.Equal(t, errs.SubmissionFailed, errs.KindOf(err))
	assert.Equal(t, types.AttemptSubmissionFailed, attempt.Status)
	assert.Equal(t, 3, attempt.Attempts)
}

func TestSubmitGasShortfallDoesNotRetry(t *testing.T) {
	fc := newFakeChain()
	signer := newFakeSigner(walletAddress)
	signer.sendErr = []error{errors.New("insufficient funds for gas * price + value")}
	exec := NewTransactionExecutor(fc, signer, testSubmitPolicy(), zap.NewNop())

	attempt, err := exec.Submit(context.Background(), exec.BuildNativeTransfer(usdcAddress, big.NewInt(1)))
	require.Error(t, err)

	// No retry can fund the wallet.
	assert.Equal(t, errs.InsufficientGasFunds, errs.KindOf(err))
	assert.Equal(t, 1, attempt.Attempts)
	assert.Len(t, signer.sent, 1)
}

func TestBuildTokenTransfer(t *testing.T) {
	fc := newFakeChain()
	exec := NewTransactionExecutor(fc, newFakeSigner(walletAddress), testSubmitPolicy(), zap.NewNop())

	req, err := exec.BuildTokenTransfer(usdcToken(), walletAddress, big.NewInt(42))
	require.NoError(t, err)

	assert.Equal(t, usdcAddress, req.To)
	assert.Equal(t, []byte("transfer:"+walletAddress+":42"), req.Data)
	assert.Nil(t, req.Value)
}

func TestBuildSwapAppendsPermitSignature(t *testing.T) {
	fc := newFakeChain()
	signer := newFakeSigner(walletAddress)
	exec := NewTransactionExecutor(fc, signer, testSubmitPolicy(), zap.NewNop())

	quote := &types.SwapQuote{
		To:          daiAddress,
		Data:        []byte{0xde, 0xad},
		Value:       big.NewInt(0),
		GasEstimate: 200_000,
		Permit2:     &types.TypedDataPayload{PrimaryType: "PermitTransferFrom"},
	}

	req, err := exec.BuildSwap(quote)
	require.NoError(t, err)

	sig := []byte("typed-data-signature")
	want := append([]byte{0xde, 0xad}, big.NewInt(int64(len(sig))).FillBytes(make([]byte, 32))...)
	want = append(want, sig...)
	assert.Equal(t, want, req.Data)
	assert.Equal(t, uint64(200_000), req.GasLimit)
}

func TestBuildSwapWithoutPermitKeepsDataUntouched(t *testing.T) {
	fc := newFakeChain()
	exec := NewTransactionExecutor(fc, newFakeSigner(walletAddress), testSubmitPolicy(), zap.NewNop())

	quote := &types.SwapQuote{To: daiAddress, Data: []byte{0x01}, Value: big.NewInt(5)}
	req, err := exec.BuildSwap(quote)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01}, req.Data)
	assert.Equal(t, big.NewInt(5), req.Value)
}
