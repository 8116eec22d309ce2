package token

import "errors"

var (
	// ErrUnexpectedOutput indicates a contract call returned data that does not decode to the expected type.
	ErrUnexpectedOutput = errors.New("token: unexpected call output")

	// ErrUnexpectedLog indicates a log is not the event being parsed.
	ErrUnexpectedLog = errors.New("token: unexpected log")

	// ErrLengthMismatch indicates recipient and amount arrays differ in length.
	ErrLengthMismatch = errors.New("token: recipients and amounts length mismatch")
)
