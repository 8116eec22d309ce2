package loader

import "errors"

var (
	// ErrHeadUnavailable indicates the chain head could not be read, so no range could be planned.
	ErrHeadUnavailable = errors.New("loader: chain head unavailable")

	// ErrSourceFailed indicates the contributor source could not be read at all.
	ErrSourceFailed = errors.New("loader: contribution source failed")
)
