package wwvb

import "fmt"

// Encode builds a full frame for t using layout. Fields are written as BCD
// digits; t is not validated beyond what is needed to fit the ranges.
func Encode(t Time, layout Layout) ([]uint8, error) {
	if t.Year < CenturyBase || t.Year > CenturyBase+99 {
		return nil, fmt.Errorf("encode: year %d outside %d-%d", t.Year, CenturyBase, CenturyBase+99)
	}
	bits := make([]uint8, FrameBits)

	fields := []struct {
		r     Range
		value int
	}{
		{layout.MinuteTens, t.Minute / 10},
		{layout.MinuteUnits, t.Minute % 10},
		{layout.HourTens, t.Hour / 10},
		{layout.HourUnits, t.Hour % 10},
		{layout.DayHundreds, t.DayOfYear / 100},
		{layout.DayTens, (t.DayOfYear / 10) % 10},
		{layout.DayUnits, t.DayOfYear % 10},
		{layout.YearTens, (t.Year - CenturyBase) / 10},
		{layout.YearUnits, (t.Year - CenturyBase) % 10},
	}
	for _, f := range fields {
		if f.value >= 1<<f.r.Width() {
			return nil, fmt.Errorf("encode: value %d does not fit in %d bits", f.value, f.r.Width())
		}
		put(bits, f.r, f.value)
	}

	if t.LeapSecondPending {
		bits[layout.LeapSecond.Start] = 1
	}
	bits[layout.DST.Start], bits[layout.DST.End] = dstToBits(t.DST)
	return bits, nil
}
