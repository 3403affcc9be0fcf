package recording

import (
	"errors"
	"fmt"
)

// Sentinel categories for use with errors.Is. Concrete errors carry file
// and field context; these anchor the taxonomy.
var (
	// ErrFormat marks a structural violation in a file: bad magic tag,
	// unknown packet type, broken invariant. Always fatal to the call.
	ErrFormat = errors.New("format error")

	// ErrOutOfRange marks a channel index or sample range outside the
	// bounds of the recording. Fatal to the call; the caller may retry
	// with corrected arguments.
	ErrOutOfRange = errors.New("out of range")

	// ErrUnsupported marks a capability gap, not a data problem: the
	// requested operation does not exist for this format.
	ErrUnsupported = errors.New("unsupported operation")
)

// FormatError reports a structural violation in a file.
type FormatError struct {
	File  string
	Field string
	Msg   string
}

func (e *FormatError) Error() string {
	s := e.Msg
	if e.Field != "" {
		s = e.Field + ": " + s
	}
	if e.File != "" {
		s = e.File + ": " + s
	}
	return s
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Formatf builds a FormatError with printf-style detail.
func Formatf(file, field, format string, args ...any) error {
	return &FormatError{File: file, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// OutOfRangeError reports a request outside [Low, High).
type OutOfRangeError struct {
	What      string
	Value     int
	Low, High int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d outside [%d, %d)", e.What, e.Value, e.Low, e.High)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// CheckRange validates a channel selection and sample window against the
// header bounds, per the shared contract: 0-based channel indices within
// [0, nchan), first <= last <= nsamples, no clamping.
func CheckRange(chans []int, first, last, nchan, nsamples int) error {
	for _, c := range chans {
		if c < 0 || c >= nchan {
			return &OutOfRangeError{What: "channel index", Value: c, High: nchan}
		}
	}
	if first < 0 || first > last {
		return &OutOfRangeError{What: "first sample", Value: first, High: last + 1}
	}
	if last > nsamples {
		return &OutOfRangeError{What: "last sample", Value: last, High: nsamples + 1}
	}
	return nil
}

// UnsupportedError reports an operation the format cannot perform.
type UnsupportedError struct{ Op string }

func (e *UnsupportedError) Error() string { return e.Op + " is not supported" }

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }
