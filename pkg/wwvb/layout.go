package wwvb

import (
	"fmt"
	"sort"
)

// Frame geometry
const (
	FrameBits   = 60   // Bits in one full minute frame
	MinimumBits = 40   // Fewer bits than this cannot carry minute/hour/day
	CenturyBase = 2000 // Added to the two transmitted year digits
)

// Range is an inclusive bit index range within a frame
type Range struct {
	Start int
	End   int
}

// Width returns the number of bits covered by the range
func (r Range) Width() int {
	return r.End - r.Start + 1
}

// Layout maps every decoded field to its bit range. It is the only place
// bit offsets live; another time-code layout is supported by supplying a
// different Layout.
type Layout struct {
	MinuteTens  Range
	MinuteUnits Range
	HourTens    Range
	HourUnits   Range
	DayHundreds Range
	DayTens     Range
	DayUnits    Range
	YearTens    Range
	YearUnits   Range
	LeapSecond  Range
	DST         Range // two bits, first bit at Start
}

// Standard is the WWVB amplitude-modulated time-code layout
var Standard = Layout{
	MinuteTens:  Range{1, 3},
	MinuteUnits: Range{5, 8},
	HourTens:    Range{12, 13},
	HourUnits:   Range{15, 18},
	DayHundreds: Range{22, 23},
	DayTens:     Range{25, 28},
	DayUnits:    Range{30, 33},
	YearTens:    Range{45, 48},
	YearUnits:   Range{50, 53},
	LeapSecond:  Range{56, 56},
	DST:         Range{57, 58},
}

// namedRange is used for validation and diagnostics
type namedRange struct {
	name string
	r    Range
}

func (l Layout) fields() []namedRange {
	return []namedRange{
		{"minute_tens", l.MinuteTens},
		{"minute_units", l.MinuteUnits},
		{"hour_tens", l.HourTens},
		{"hour_units", l.HourUnits},
		{"day_hundreds", l.DayHundreds},
		{"day_tens", l.DayTens},
		{"day_units", l.DayUnits},
		{"year_tens", l.YearTens},
		{"year_units", l.YearUnits},
		{"leap_second", l.LeapSecond},
		{"dst", l.DST},
	}
}

// Validate checks that every range is well formed, lies within the frame,
// and that ranges are disjoint and declared in increasing start order.
func (l Layout) Validate() error {
	fields := l.fields()
	for _, f := range fields {
		if f.r.Start < 0 || f.r.End >= FrameBits || f.r.End < f.r.Start {
			return fmt.Errorf("layout: field %s has invalid range [%d,%d]", f.name, f.r.Start, f.r.End)
		}
	}
	if f := fields[len(fields)-1]; f.r.Width() != 2 {
		return fmt.Errorf("layout: field %s must be exactly two bits wide", f.name)
	}
	if !sort.SliceIsSorted(fields, func(i, j int) bool { return fields[i].r.Start < fields[j].r.Start }) {
		return fmt.Errorf("layout: fields are not ordered by start index")
	}
	for i := 1; i < len(fields); i++ {
		prev, cur := fields[i-1], fields[i]
		if cur.r.Start <= prev.r.End {
			return fmt.Errorf("layout: field %s overlaps %s", cur.name, prev.name)
		}
	}
	return nil
}
