// Package wwvb decodes WWVB-style minute frames into UTC time fields.
//
// A frame is the sequence of data bits accumulated between two frame
// boundaries. Field positions come from a Layout; the decoder itself
// carries no bit offsets.
package wwvb

import (
	"fmt"

	"github.com/dbehnke/wwvb-sync/pkg/calendar"
)

// DSTStatus is the two-bit daylight saving indicator
type DSTStatus int

const (
	DSTNone DSTStatus = iota
	DSTActive
	DSTEndsToday
	DSTBeginsToday
)

func (s DSTStatus) String() string {
	switch s {
	case DSTNone:
		return "none"
	case DSTActive:
		return "active"
	case DSTEndsToday:
		return "ends_today"
	case DSTBeginsToday:
		return "begins_today"
	default:
		return fmt.Sprintf("DSTStatus(%d)", int(s))
	}
}

// MarshalText encodes the status by name
func (s DSTStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText
func (s *DSTStatus) UnmarshalText(b []byte) error {
	for _, v := range []DSTStatus{DSTNone, DSTActive, DSTEndsToday, DSTBeginsToday} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("wwvb: unknown DST status %q", b)
}

// dstFromBits maps (first, second) DST bits to a status
func dstFromBits(first, second bool) DSTStatus {
	switch {
	case first && second:
		return DSTBeginsToday
	case first:
		return DSTActive
	case second:
		return DSTEndsToday
	default:
		return DSTNone
	}
}

// dstToBits is the inverse of dstFromBits
func dstToBits(s DSTStatus) (uint8, uint8) {
	switch s {
	case DSTActive:
		return 1, 0
	case DSTEndsToday:
		return 0, 1
	case DSTBeginsToday:
		return 1, 1
	default:
		return 0, 0
	}
}

// Time is a validated UTC timestamp decoded from one frame
type Time struct {
	Minute            int       `json:"minute"`
	Hour              int       `json:"hour"`
	DayOfYear         int       `json:"day_of_year"`
	Year              int       `json:"year"`
	DST               DSTStatus `json:"dst"`
	LeapSecondPending bool      `json:"leap_second_pending"`
}

// Date returns the UTC calendar date of t
func (t Time) Date() calendar.Date {
	d, _ := calendar.NewDate(t.Year, t.DayOfYear)
	return d
}

// String formats t as YYYY-MM-DD HH:MM UTC
func (t Time) String() string {
	return fmt.Sprintf("%s %02d:%02d UTC", t.Date(), t.Hour, t.Minute)
}

// Decoder turns frames into Time values using a fixed Layout
type Decoder struct {
	layout Layout
}

// NewDecoder validates layout and returns a decoder for it
func NewDecoder(layout Layout) (*Decoder, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{layout: layout}, nil
}

// Layout returns the layout the decoder was built with
func (d *Decoder) Layout() Layout {
	return d.layout
}

// Decode extracts and validates all fields of one frame. On failure the
// returned error is a *DecodeError and the Time is the zero value.
func (d *Decoder) Decode(bits []uint8) (Time, error) {
	if len(bits) < MinimumBits {
		return Time{}, &DecodeError{Reason: ReasonIncomplete, BitCount: len(bits)}
	}

	l := d.layout
	minTens, minUnits := Digit(bits, l.MinuteTens), Digit(bits, l.MinuteUnits)
	hourTens, hourUnits := Digit(bits, l.HourTens), Digit(bits, l.HourUnits)
	dayHundreds, dayTens, dayUnits := Digit(bits, l.DayHundreds), Digit(bits, l.DayTens), Digit(bits, l.DayUnits)
	yearTens, yearUnits := Digit(bits, l.YearTens), Digit(bits, l.YearUnits)

	t := Time{
		Minute:            minTens*10 + minUnits,
		Hour:              hourTens*10 + hourUnits,
		DayOfYear:         dayHundreds*100 + dayTens*10 + dayUnits,
		Year:              CenturyBase + yearTens*10 + yearUnits,
		DST:               dstFromBits(bit(bits, l.DST.Start), bit(bits, l.DST.End)),
		LeapSecondPending: bit(bits, l.LeapSecond.Start),
	}

	invalid := func(field string) (Time, error) {
		return Time{}, &DecodeError{
			Reason:    ReasonInvalidFieldRange,
			Field:     field,
			BitCount:  len(bits),
			Minute:    t.Minute,
			Hour:      t.Hour,
			DayOfYear: t.DayOfYear,
			Year:      t.Year,
		}
	}

	// A nibble above 9 is not a BCD digit even if the total lands in range
	digits := []struct {
		name  string
		value int
	}{
		{"minute", minUnits},
		{"hour", hourUnits},
		{"day_of_year", dayTens},
		{"day_of_year", dayUnits},
		{"year", yearTens},
		{"year", yearUnits},
	}
	for _, dg := range digits {
		if dg.value > 9 {
			return invalid(dg.name)
		}
	}

	switch {
	case t.Minute < 0 || t.Minute > 59:
		return invalid("minute")
	case t.Hour < 0 || t.Hour > 23:
		return invalid("hour")
	case t.DayOfYear < 1 || t.DayOfYear > 366:
		return invalid("day_of_year")
	}

	month, day, ok := calendar.MonthDay(t.DayOfYear, t.Year)
	if !ok {
		return Time{}, &DecodeError{
			Reason:    ReasonMalformedDayOfYear,
			Field:     "day_of_year",
			BitCount:  len(bits),
			Minute:    t.Minute,
			Hour:      t.Hour,
			DayOfYear: t.DayOfYear,
			Year:      t.Year,
		}
	}
	if month < 1 || month > 12 {
		return invalid("month")
	}
	if day < 1 || day > 31 {
		return invalid("day")
	}

	return t, nil
}
