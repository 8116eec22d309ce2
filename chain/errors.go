package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("chain: connection failed")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("chain: invalid response")

	// ErrReceiptTimeout indicates no receipt was observed before the wait deadline.
	ErrReceiptTimeout = errors.New("chain: timed out waiting for receipt")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("chain: required parameter is nil")
)

// Well-known error codes.
const (
	// CodeUnknown marks failures that carried no code (transport errors, local signing).
	CodeUnknown = 0

	// CodeUserRejected is the EIP-1193 code a wallet returns when the user declines a request.
	CodeUserRejected = 4001

	// CodeInternal is the JSON-RPC internal error code.
	CodeInternal = -32603
)

// Error wraps any failure returned by the node or the signing wallet.
// Code distinguishes a user-declined request from infrastructure failures.
type Error struct {
	Code    int
	Message string
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Code == CodeUnknown {
		return fmt.Sprintf("chain: %s", e.Message)
	}
	return fmt.Sprintf("chain: error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode exposes Code to retry classification.
func (e *Error) ErrorCode() int { return e.Code }

// UserRejected reports whether the signer declined the request.
func (e *Error) UserRejected() bool { return e.Code == CodeUserRejected }

// IsUserRejected reports whether err carries the user-declined code.
func IsUserRejected(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.UserRejected()
}

// ErrorCode extracts the chain error code from err, or CodeUnknown.
func ErrorCode(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

// wrapError converts err into a *Error, preserving an existing one.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return &Error{Code: coded.ErrorCode(), Message: err.Error(), Err: err}
	}
	return &Error{Code: CodeUnknown, Message: err.Error(), Err: err}
}
