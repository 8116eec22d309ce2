package plan

import "errors"

var (
	// ErrInvalidInput indicates a malformed entry list, batch size, rate, or decimals value.
	ErrInvalidInput = errors.New("plan: invalid input")

	// ErrDuplicateAddress indicates the same recipient appears twice in one entry list.
	ErrDuplicateAddress = errors.New("plan: duplicate recipient address")
)
