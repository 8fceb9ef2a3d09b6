package reconcile

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound means the reference resolved to nothing: a caller bug or a
// stale reference. Never retried by the engine.
var ErrOrderNotFound = errors.New("order not found")

// TransientError wraps an infrastructure failure from the store. Callers
// retry it with backoff; it is never swallowed.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
