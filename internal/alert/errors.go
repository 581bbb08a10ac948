package alert

import (
	"errors"
	"fmt"
)

// ErrAlertNotFound is returned when an id does not exist in the registry
var ErrAlertNotFound = errors.New("alert not found")

// PersistenceError wraps a failed durable read or write. It is fatal to the
// operation that produced it and always propagates to the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("alert store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
