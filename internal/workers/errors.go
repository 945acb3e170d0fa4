package workers

import "github.com/pkg/errors"

// terminalError marks a failure that redelivery cannot fix: malformed
// payloads, unknown references. The poll loop acks such messages so
// they are dropped instead of cycling through the channel.
type terminalError struct {
	error
}

func (e *terminalError) Unwrap() error {
	return e.error
}

// Terminal marks err as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err}
}

// Terminalf builds a non-retryable error.
func Terminalf(format string, args ...interface{}) error {
	return &terminalError{errors.Errorf(format, args...)}
}

// IsTerminal reports whether err (or anything it wraps) was marked
// terminal. Everything else is treated as transient and retried via
// redelivery.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}
