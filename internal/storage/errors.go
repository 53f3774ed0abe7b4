package storage

import (
	"errors"
	"fmt"
)

// Consistency failures. They are reported wrapped in a *ConsistencyError.
var (
	// ErrMalformedTree indicates a half-deleted or corrupt deployment layout.
	ErrMalformedTree = errors.New("malformed directory structure")

	// ErrMultipleBuckets indicates more than one Airnode bucket in the account.
	ErrMultipleBuckets = errors.New("multiple Airnode buckets found")

	// ErrVersionMismatch indicates the deployed node version differs from ours.
	ErrVersionMismatch = errors.New("node version mismatch")

	// ErrRegionMismatch indicates the deployed region differs from ours.
	ErrRegionMismatch = errors.New("region mismatch")
)

// ConsistencyError reports stored state that contradicts the deployment
// conventions. It is never retried and is always raised before any mutation.
type ConsistencyError struct {
	Err     error
	Message string
}

func (e *ConsistencyError) Error() string {
	return e.Message
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// IsConsistencyError reports whether err is, or wraps, a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// MalformedTreeError reports a deployment layout that cannot be interpreted.
func MalformedTreeError(message string) error {
	return &ConsistencyError{Err: ErrMalformedTree, Message: fmt.Sprintf("%v: %s", ErrMalformedTree, message)}
}

// Error wraps a provider SDK failure with the operation and the affected resource.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Bucket == "":
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	case e.Key == "":
		return fmt.Sprintf("failed to %s (bucket %s): %v", e.Op, e.Bucket, e.Err)
	default:
		return fmt.Sprintf("failed to %s %s (bucket %s): %v", e.Op, e.Key, e.Bucket, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError returns nil for a nil err, and a *Error otherwise.
func WrapError(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}
