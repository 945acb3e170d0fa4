package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")

	// ErrPreconditionFailed is returned by conditional updates when the
	// record exists but is not in the expected prior state. Callers treat
	// it as "already handled by someone else", not as a failure.
	ErrPreconditionFailed = errors.New("precondition failed")
)
