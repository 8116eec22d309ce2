package journal

import "errors"

var (
	// ErrNotFound indicates no run is recorded under the given ID.
	ErrNotFound = errors.New("journal: run not found")

	// ErrNilRun indicates Record was called without a run.
	ErrNilRun = errors.New("journal: nil run")
)
