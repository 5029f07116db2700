package database

import (
	"errors"
	"fmt"
)

// ErrScanAborted marks the error that ends a ScanAll iteration. Errors of
// single unreadable records never carry it.
var ErrScanAborted = errors.New("scan aborted")

// StorageError reports a persistence I/O failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapError wraps err into a StorageError, nil stays nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// AbortScan wraps the failure that ends a scan into a StorageError matching
// ErrScanAborted.
func AbortScan(op string, err error) error {
	return &StorageError{Op: op, Err: fmt.Errorf("%w: %w", ErrScanAborted, err)}
}
