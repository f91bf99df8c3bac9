// Package perr defines the error taxonomy shared by every pipeline stage
// (segmenter, background estimator, tracker, extractor, scheduler).
//
// Construction follows the style of github.com/grailbio/base/errors.E: a
// Kind tag plus free-form context values, rather than ad hoc error strings,
// so the scheduler can classify and route failures (continue vs. abort)
// without string matching.
package perr

import (
	"fmt"
	"strings"
)

// Kind is the error taxonomy from the pipeline's error handling design.
type Kind int

const (
	// Other is an unclassified error; stage code should not produce these
	// except when wrapping a genuinely unexpected condition.
	Other Kind = iota
	// ConfigError marks an invalid channel index, unknown feature name,
	// feature/channel-kind mismatch, or out-of-range parameter. Fatal to
	// the whole run.
	ConfigError
	// IoError marks a file open/read/write/rename failure, short read, or
	// manifest persistence failure. Fatal to the producing FOV only.
	IoError
	// FormatError marks a source file that cannot be decoded, or that
	// returns an unexpected shape. Fatal to the producing batch.
	FormatError
	// DimensionMismatch marks internal stacks disagreeing on (T,H,W) or
	// dtype. Fatal to the producing FOV; its partial outputs are kept.
	DimensionMismatch
	// NumericError marks non-finite values encountered during a numeric
	// reduction. Downgraded to a warning unless the whole frame is
	// unusable.
	NumericError
	// Cancelled marks a run stopped in response to a CancelToken.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case IoError:
		return "IoError"
	case FormatError:
		return "FormatError"
	case DimensionMismatch:
		return "DimensionMismatch"
	case NumericError:
		return "NumericError"
	case Cancelled:
		return "Cancelled"
	default:
		return "Error"
	}
}

// Error is the structured error type returned by every stage function.
// Workers attach FOV/Stage/Frame context as the error propagates up to the
// scheduler, the same way markduplicates/metrics.go appends path/context
// strings to its errors.E calls.
type Error struct {
	Kind  Kind
	Msg   string
	FOV   int // -1 if not attached yet
	Stage string
	Frame int // -1 if not applicable
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Stage != "" {
		fmt.Fprintf(&b, " [%s", e.Stage)
		if e.FOV >= 0 {
			fmt.Fprintf(&b, " fov=%d", e.FOV)
		}
		if e.Frame >= 0 {
			fmt.Fprintf(&b, " frame=%d", e.Frame)
		}
		b.WriteString("]")
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs a new Error of the given kind. msg and wrapped may be omitted.
func E(kind Kind, msg string, wrapped error) *Error {
	return &Error{Kind: kind, Msg: msg, FOV: -1, Frame: -1, Err: wrapped}
}

// WithContext returns a copy of err with FOV/Stage/Frame attached, the way a
// worker annotates a stage error before handing it to the scheduler.
func WithContext(err error, fov int, stage string, frame int) error {
	pe, ok := err.(*Error)
	if !ok {
		pe = &Error{Kind: Other, FOV: -1, Frame: -1, Err: err}
	} else {
		cp := *pe
		pe = &cp
	}
	pe.FOV = fov
	pe.Stage = stage
	pe.Frame = frame
	return pe
}

// KindOf extracts the Kind from err, or Other if err is not a *Error.
func KindOf(err error) Kind {
	if pe, ok := err.(*Error); ok {
		return pe.Kind
	}
	return Other
}
