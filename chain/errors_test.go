package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitfsorg/libairdrop-go/retry"
)

type codedError struct{ code int }

func (e codedError) Error() string  { return fmt.Sprintf("code %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func TestErrorString(t *testing.T) {
	assert.Equal(t, "chain: boom", (&Error{Message: "boom"}).Error())
	assert.Equal(t, "chain: error 4001: denied", (&Error{Code: 4001, Message: "denied"}).Error())
}

func TestIsUserRejected(t *testing.T) {
	rejected := &Error{Code: CodeUserRejected, Message: "User rejected the request."}
	assert.True(t, IsUserRejected(rejected))
	assert.True(t, IsUserRejected(fmt.Errorf("approve: %w", rejected)))
	assert.False(t, IsUserRejected(&Error{Code: CodeInternal}))
	assert.False(t, IsUserRejected(errors.New("4001")))
	assert.False(t, IsUserRejected(nil))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeInternal, ErrorCode(fmt.Errorf("x: %w", &Error{Code: CodeInternal})))
	assert.Equal(t, CodeUnknown, ErrorCode(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError(nil))

	orig := &Error{Code: 7, Message: "kept"}
	assert.Same(t, orig, wrapError(orig))

	coded := wrapError(codedError{code: CodeUserRejected})
	assert.True(t, IsUserRejected(coded))
	assert.ErrorIs(t, coded, codedError{code: CodeUserRejected})

	plain := errors.New("dial tcp: refused")
	wrapped := wrapError(plain)
	assert.Equal(t, CodeUnknown, ErrorCode(wrapped))
	assert.ErrorIs(t, wrapped, plain)
}

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"internal", &Error{Code: CodeInternal, Message: "header not found"}, true},
		{"limit exceeded", &Error{Code: -32005, Message: "limit exceeded"}, true},
		{"wrapped internal", fmt.Errorf("receipt: %w", &Error{Code: CodeInternal}), true},
		{"user rejected", &Error{Code: CodeUserRejected, Message: "denied"}, false},
		{"revert", &Error{Code: 3, Message: "execution reverted"}, false},
		{"invalid params", &Error{Code: -32602, Message: "invalid argument 0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.IsRetryable(tt.err))
		})
	}
}
