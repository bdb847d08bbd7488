package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	err := &RuntimeError{
		Code:      ErrCodeHookFailed,
		Message:   `before_delete hook "audit" failed`,
		FlowToken: "flow-1",
		Entity:    "node/3",
		Hook:      "audit",
		Err:       assert.AnError,
	}

	msg := err.Error()
	assert.Contains(t, msg, "HOOK_FAILED")
	assert.Contains(t, msg, "flow=flow-1")
	assert.Contains(t, msg, "entity=node/3")
	assert.Contains(t, msg, assert.AnError.Error())
}

func TestRuntimeError_NoFlow(t *testing.T) {
	err := &RuntimeError{Code: ErrCodeCascadeFailed, Message: "composite field ref failed"}
	assert.Equal(t, "CASCADE_FAILED: composite field ref failed", err.Error())
}

func TestRuntimeError_Unwrap(t *testing.T) {
	sentinel := errors.New("disk full")
	err := fmt.Errorf("delete node/1: %w", &RuntimeError{Code: ErrCodeCascadeFailed, Err: sentinel})

	assert.ErrorIs(t, err, sentinel)
	assert.True(t, IsCascadeError(err))
	assert.False(t, IsQuotaError(err))
}

func TestIsQuotaError(t *testing.T) {
	quota := &RuntimeError{Code: ErrCodeQuotaExceeded, Err: &QuotaExceededError{FlowToken: "f", Deletes: 2, Limit: 1}}

	assert.True(t, IsQuotaError(quota))
	assert.True(t, IsQuotaError(&QuotaExceededError{}))
	assert.True(t, IsQuotaError(fmt.Errorf("wrapped: %w", quota)))
	assert.False(t, IsQuotaError(&RuntimeError{Code: ErrCodeHookFailed}))
	assert.False(t, IsQuotaError(nil))
	assert.False(t, IsCascadeError(quota))
}
