package model

import (
	"errors"
	"fmt"
)

// Error kinds reported by an ingestion run. Use errors.Is to test for them.
var (
	// ErrDiscovery means the root directory could not be enumerated. Fatal.
	ErrDiscovery = errors.New("discovery failed")
	// ErrIO means a candidate trace file could not be opened or read.
	ErrIO = errors.New("cannot read trace file")
	// ErrMalformedTrace means the file is not a valid trace event document.
	ErrMalformedTrace = errors.New("malformed trace")
	// ErrDuplicateObject means the derived object path is already in the store.
	ErrDuplicateObject = errors.New("duplicate object")
	// ErrStore means a merge into the store failed for one file.
	ErrStore = errors.New("store error")
	// ErrStoreUnavailable means the store cannot accept further writes. Fatal.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDurationRange means an event duration does not fit the store's integer unit.
	ErrDurationRange = errors.New("duration out of range")
)

// ErrorKind is a short label for the kind of a per-file failure.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindDiscovery       ErrorKind = "discovery"
	KindIO              ErrorKind = "io"
	KindMalformed       ErrorKind = "malformed"
	KindDuplicateObject ErrorKind = "duplicate-object"
	KindStore           ErrorKind = "store"
	KindStoreFatal      ErrorKind = "store-unavailable"
	KindUnknown         ErrorKind = "unknown"
)

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreFatal
	case errors.Is(err, ErrDiscovery):
		return KindDiscovery
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrMalformedTrace):
		return KindMalformed
	case errors.Is(err, ErrDuplicateObject):
		return KindDuplicateObject
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindUnknown
	}
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindDiscovery, KindStoreFatal:
		return true
	}
	return false
}

// FileError ties a per-file failure to the trace path it came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
