package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// Op identifies which storage operation failed.
type Op string

const (
	OpOpen  Op = "open"
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpGrow  Op = "grow"
)

// StorageError wraps an I/O failure in the recording store. The scheduler
// inspects the op to decide between absorbing the error (write/grow during
// an active recording) and surfacing it as blocking (open).
type StorageError struct {
	Op  Op
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrDimensionMismatch reports that a frame's height/width disagree with an
// already-open store.
var ErrDimensionMismatch = errors.New("frame dimensions do not match store")

func storageErr(op Op, err error) error {
	return &StorageError{Op: op, Err: err}
}
