package container

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound   = errors.New("entry not found")
	ErrEntryTooLarge   = errors.New("decoded entry exceeds size limit")
	ErrUnknownEncoding = errors.New("unknown entry encoding")
)

// FormatError reports a container that cannot be read at all: a bad magic
// signature, a missing or corrupt directory. It is unrecoverable for the
// whole extraction.
type FormatError struct {
	Format string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Format + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// NewFormatError builds a FormatError. err may be nil.
func NewFormatError(format, reason string, err error) *FormatError {
	return &FormatError{Format: format, Reason: reason, Err: err}
}

// DecodeError reports a failure to materialize a single entry.
type DecodeError struct {
	Entry string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Entry, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// OutOfRangeError reports an entry whose byte range lies outside the container.
type OutOfRangeError struct {
	Entry  string
	Offset int64
	Length int64
	Size   int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("entry %q range [%d, %d+%d) exceeds container size %d", e.Entry, e.Offset, e.Offset, e.Length, e.Size)
}

// IsFormatError reports whether err is (or wraps) a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsDecodeFailure reports whether err is a per-entry failure that callers
// should absorb: a DecodeError or an OutOfRangeError.
func IsDecodeFailure(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	var oe *OutOfRangeError
	return errors.As(err, &oe)
}
