package domain

import "errors"

var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrStaleData       = errors.New("data past staleness bound")
	ErrNotFound        = errors.New("not found")
	ErrLockHeld        = errors.New("cycle lock already held")
	ErrStoreCorrupt    = errors.New("store missing or corrupted")
	ErrExecutionFailed = errors.New("order submission failed")
	ErrUnwindFailed    = errors.New("unwind of filled leg failed")
)
