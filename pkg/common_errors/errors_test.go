package common_errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

func TestClassification(t *testing.T) {
	base := errors.New("db unavailable")

	r := Retryable(base)
	assert.True(t, IsRetryable(r))
	assert.False(t, IsFatal(r))
	assert.True(t, xerrors.Is(r, base))

	f := Fatal(base)
	assert.True(t, IsFatal(f))
	assert.False(t, IsRetryable(f))

	wrapped := xerrors.Errorf("process [30, 39]: %w", r)
	assert.True(t, IsRetryable(wrapped))

	tr := Transient(base)
	assert.True(t, IsTransientNetwork(tr))
	assert.False(t, IsFatal(tr))
}

func TestNilStaysNil(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Fatal(nil))
	assert.Nil(t, Transient(nil))
}

func TestFatalSentinels(t *testing.T) {
	for _, err := range []error{
		ErrContinuityViolation, ErrUnauthenticated, ErrReconnectExhausted,
		ErrChainIDMismatch, ErrOverlappingRange,
	} {
		assert.True(t, IsFatal(xerrors.Errorf("ctx: %w", err)), err.Error())
	}
	assert.False(t, IsFatal(ErrStreamTimeout))
	assert.False(t, IsFatal(ErrStreamEnded))
}
