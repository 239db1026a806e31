// Package timezone converts decoded UTC time into local wall-clock fields
// for a fixed hour offset plus the transmitted DST status.
package timezone

import (
	"fmt"
	"sort"

	"github.com/dbehnke/wwvb-sync/pkg/calendar"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// Offset limits in whole hours
const (
	MinOffset = -12
	MaxOffset = 14
)

var zones = map[string]int{
	"EST":  -5,
	"CST":  -6,
	"MST":  -7,
	"PST":  -8,
	"AKST": -9,
	"HST":  -10,
}

// Zones returns the US standard-time abbreviations and their offsets. The
// map is a copy.
func Zones() map[string]int {
	out := make(map[string]int, len(zones))
	for k, v := range zones {
		out[k] = v
	}
	return out
}

// Names returns the zone abbreviations sorted from east to west
func Names() []string {
	names := make([]string, 0, len(zones))
	for k := range zones {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return zones[names[i]] > zones[names[j]] })
	return names
}

// Lookup returns the offset for a zone abbreviation
func Lookup(name string) (int, bool) {
	off, ok := zones[name]
	return off, ok
}

// ValidateOffset checks that offset is a plausible UTC offset in hours
func ValidateOffset(offset int) error {
	if offset < MinOffset || offset > MaxOffset {
		return fmt.Errorf("timezone: offset %d outside [%d, %d]", offset, MinOffset, MaxOffset)
	}
	return nil
}

// Local is a wall-clock reading derived from UTC
type Local struct {
	calendar.Date
	DayOfYear int            `json:"day_of_year"`
	Hour      int            `json:"hour"`
	Minute    int            `json:"minute"`
	DST       wwvb.DSTStatus `json:"dst"`
	Offset    int            `json:"offset"`
}

// String formats the reading as YYYY-MM-DD HH:MM
func (l Local) String() string {
	return fmt.Sprintf("%s %02d:%02d", l.Date, l.Hour, l.Minute)
}

// UTCOffsetHours is the effective offset including the DST hour
func (l Local) UTCOffsetHours() int {
	if l.DST == wwvb.DSTActive {
		return l.Offset + 1
	}
	return l.Offset
}

// Localize applies offset hours to t, plus one hour when DST is in effect.
// Only the hour wraps; the date stays the decoded (year, day of year).
func Localize(t wwvb.Time, offset int) Local {
	date, _ := calendar.NewDate(t.Year, t.DayOfYear)
	return Local{
		Date:      date,
		DayOfYear: t.DayOfYear,
		Hour:      floorMod(localHour(t, offset), 24),
		Minute:    t.Minute,
		DST:       t.DST,
		Offset:    offset,
	}
}

// LocalizeRollover is Localize with the date following the hour across
// midnight and year boundaries.
func LocalizeRollover(t wwvb.Time, offset int) Local {
	h := localHour(t, offset)
	days := floorDiv(h, 24)
	year, doy := calendar.AddDays(t.Year, t.DayOfYear, days)
	date, _ := calendar.NewDate(year, doy)
	return Local{
		Date:      date,
		DayOfYear: doy,
		Hour:      h - days*24,
		Minute:    t.Minute,
		DST:       t.DST,
		Offset:    offset,
	}
}

func localHour(t wwvb.Time, offset int) int {
	h := t.Hour + offset
	if t.DST == wwvb.DSTActive {
		h++
	}
	return h
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
