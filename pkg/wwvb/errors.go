package wwvb

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteFrame indicates too few bits were accumulated before the frame boundary
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrInvalidFieldRange indicates a decoded field is outside its legal range
	ErrInvalidFieldRange = errors.New("invalid field range")
	// ErrMalformedDayOfYear indicates the day-of-year does not exist in the decoded year
	ErrMalformedDayOfYear = errors.New("malformed day of year")
)

// Reason classifies a decode failure
type Reason int

const (
	ReasonIncomplete Reason = iota + 1
	ReasonInvalidFieldRange
	ReasonMalformedDayOfYear
)

func (r Reason) String() string {
	switch r {
	case ReasonIncomplete:
		return "incomplete"
	case ReasonInvalidFieldRange:
		return "invalid"
	case ReasonMalformedDayOfYear:
		return "malformed_day_of_year"
	default:
		return "unknown"
	}
}

// DecodeError describes a rejected frame. The raw field values are kept
// for diagnostics; they are zero for incomplete frames.
type DecodeError struct {
	Reason    Reason
	Field     string // offending field, empty for incomplete frames
	BitCount  int
	Minute    int
	Hour      int
	DayOfYear int
	Year      int
}

func (e *DecodeError) Error() string {
	if e.Reason == ReasonIncomplete {
		return fmt.Sprintf("%v: %d bits, need %d", ErrIncompleteFrame, e.BitCount, MinimumBits)
	}
	return fmt.Sprintf("%v: field=%s minute=%d hour=%d day_of_year=%d year=%d",
		e.Unwrap(), e.Field, e.Minute, e.Hour, e.DayOfYear, e.Year)
}

// Unwrap returns the sentinel error matching the reason
func (e *DecodeError) Unwrap() error {
	switch e.Reason {
	case ReasonIncomplete:
		return ErrIncompleteFrame
	case ReasonMalformedDayOfYear:
		return ErrMalformedDayOfYear
	default:
		return ErrInvalidFieldRange
	}
}

// ReasonOf extracts the failure reason from err, or 0 if err is not a
// DecodeError.
func ReasonOf(err error) Reason {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return 0
}
