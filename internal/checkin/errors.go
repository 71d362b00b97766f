package checkin

import (
	"errors"
	"fmt"
)

// Validation errors. Callers map these to 400.
var (
	ErrEventRequired      = errors.New("event_id is required")
	ErrCredentialRequired = errors.New("qr_code is required")
	ErrRegistrantRequired = errors.New("registration_id is required")
	ErrInvalidMethod      = errors.New("method must be qr or manual")
)

// ErrUnknownEvent means the event id does not exist.
var ErrUnknownEvent = errors.New("event not found")

// StorageError wraps a store failure during an attempt. No partial state
// was committed, so the attempt can be retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("check-in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable is always true; a retried attempt that already landed comes
// back as a duplicate.
func (e *StorageError) Retryable() bool { return true }

// IsStorageError reports whether err came from the store.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
