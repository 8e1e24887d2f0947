package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := E(InsufficientBalance, "wallet is short 5 USDC")
	wrapped := fmt.Errorf("item 2 failed: %w", base)

	assert.Equal(t, InsufficientBalance, KindOf(wrapped))
	assert.True(t, Is(wrapped, InsufficientBalance))
	assert.False(t, Is(wrapped, Reverted))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(SubmissionFailed, "broadcast failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "SUBMISSION_FAILED")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
