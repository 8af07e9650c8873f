package store

import (
	"errors"
	"fmt"
)

// ErrNotFound marks data that is absent from the store. Absence is an expected
// outcome, not a failure: callers translate it to an empty result, never to a
// crashed request.
var ErrNotFound = errors.New("not found")

// StoreError wraps a Redis/connection failure with the operation and key that
// hit it. Callers decide whether to fail soft (metrics/trending reads return
// empty, rate limits fail open) or to surface the failure.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err represents absent data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreError reports whether err is a store/connection failure as opposed to
// absent data or caller misuse.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
