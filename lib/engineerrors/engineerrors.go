// Package engineerrors defines the closed error taxonomy from spec.md §7.
//
// Grounded on lib/store/interface.go's Error/RetCode pattern (a small
// closed set of kinds carried on a typed error), generalized from a single
// RetCode field to a Kind enum plus cockroachdb/errors wrapping so kinds
// survive errors.Is across package boundaries the way the teacher's
// store.Error survives across the rpc layer.
package engineerrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind enumerates the error categories named in spec.md §7.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota

	// Input errors
	KindInvalidRange
	KindUnknownRegion
	KindNoSuchFamily

	// Corruption
	KindCorruptFile
	KindCorruptEncoding
	KindChecksumMismatch
	KindCorruptedSnapshot

	// State errors
	KindRegionNotOnline
	KindMergeRegion

	// Capacity / transient
	KindCapacityExceeded
	KindTransientIO

	// Not found
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRange:
		return "InvalidRange"
	case KindUnknownRegion:
		return "UnknownRegion"
	case KindNoSuchFamily:
		return "NoSuchFamily"
	case KindCorruptFile:
		return "CorruptFile"
	case KindCorruptEncoding:
		return "CorruptEncoding"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindCorruptedSnapshot:
		return "CorruptedSnapshot"
	case KindRegionNotOnline:
		return "RegionNotOnline"
	case KindMergeRegion:
		return "MergeRegion"
	case KindCapacityExceeded:
		return "CapacityExceeded"
	case KindTransientIO:
		return "TransientIO"
	case KindNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// EngineError is the concrete error type returned across package
// boundaries in the engine core. Op names the failing operation
// (e.g. "Region.put", "SortedFile.open") for log correlation.
type EngineError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *EngineError) Unwrap() error { return e.Err }

// New creates an EngineError of the given kind, wrapping cause (which may
// be nil) with cockroachdb/errors so errors.Is/errors.As keep working
// after further fmt.Errorf("%w", ...) wrapping upstream.
func New(kind Kind, op string, cause error) error {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, op)
	}
	return &EngineError{Kind: kind, Op: op, Err: wrapped}
}

// Is reports whether err is an EngineError of the given kind.
func Is(err error, kind Kind) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}
