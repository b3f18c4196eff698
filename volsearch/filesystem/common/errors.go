package common

import (
	"context"
	"errors"
	"fmt"
)

// Failure taxonomy shared by the enumerator, traverser, builder and search engine.
var (
	// ErrAccessDenied means the process lacks the privilege to read the change journal.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnsupportedVolume means the volume is not NTFS or its journal is disabled.
	ErrUnsupportedVolume = errors.New("volume does not support bulk enumeration")

	// ErrExcludedVolume means the volume is removable or remote and is not indexed at all.
	ErrExcludedVolume = errors.New("volume is not a local fixed volume")

	// ErrTransientIO is any other I/O failure; it aborts one volume's build only.
	ErrTransientIO = errors.New("transient i/o failure")

	// ErrMalformedRecord marks a record that was skipped during build.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDepthExceeded marks a path walk that hit the depth cap.
	ErrDepthExceeded = errors.New("path resolution depth exceeded")

	// ErrIndexNotFrozen is returned when a store is queried before its build completed.
	ErrIndexNotFrozen = errors.New("index is not frozen")

	// ErrStoreFrozen is returned when a frozen store is written to.
	ErrStoreFrozen = errors.New("index is frozen")

	// ErrRecordNotFound is returned for ids the store does not hold.
	ErrRecordNotFound = errors.New("record not found")

	// ErrVolumeNotFound is returned for volumes the session has no index for.
	ErrVolumeNotFound = errors.New("volume not indexed")

	// ErrEndOfData ends a bulk enumeration.
	ErrEndOfData = errors.New("end of data")

	// ErrBufferTooSmall asks the enumerator to retry the same cursor with a larger buffer.
	ErrBufferTooSmall = errors.New("buffer too small")
)

// Kind classifies an error into the taxonomy above.
type Kind string

const (
	KindNone            Kind = ""
	KindAccessDenied    Kind = "access_denied"
	KindUnsupported     Kind = "unsupported_volume"
	KindExcluded        Kind = "excluded_volume"
	KindTransientIO     Kind = "transient_io"
	KindMalformedRecord Kind = "malformed_record"
	KindDepthExceeded   Kind = "depth_exceeded"
	KindNotFrozen       Kind = "index_not_frozen"
	KindCanceled        Kind = "canceled"
)

// Classify maps err onto its taxonomy kind. Unknown errors are transient I/O.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrUnsupportedVolume):
		return KindUnsupported
	case errors.Is(err, ErrExcludedVolume):
		return KindExcluded
	case errors.Is(err, ErrMalformedRecord):
		return KindMalformedRecord
	case errors.Is(err, ErrDepthExceeded):
		return KindDepthExceeded
	case errors.Is(err, ErrIndexNotFrozen):
		return KindNotFrozen
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindTransientIO
	}
}

// VolumeError carries the volume and operation a failure belongs to.
type VolumeError struct {
	Volume string
	Op     string
	Err    error
}

// NewVolumeError wraps err for volume. Errors outside the taxonomy are wrapped
// as transient I/O so errors.Is(err, ErrTransientIO) holds for them.
func NewVolumeError(volume, op string, err error) *VolumeError {
	if err == nil {
		return nil
	}
	if Classify(err) == KindTransientIO && !errors.Is(err, ErrTransientIO) {
		err = fmt.Errorf("%w: %w", ErrTransientIO, err)
	}
	return &VolumeError{Volume: volume, Op: op, Err: err}
}

// Error implements the error interface
func (e *VolumeError) Error() string {
	return fmt.Sprintf("volume %s: %s: %v", e.Volume, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *VolumeError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy kind of the wrapped error.
func (e *VolumeError) Kind() Kind {
	return Classify(e.Err)
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}
