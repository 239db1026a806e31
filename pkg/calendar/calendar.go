// Package calendar implements the Gregorian date arithmetic used by the
// time-code decoder: leap years, day-of-year conversion and weekdays.
package calendar

import "fmt"

// Weekday numbers days with Monday as 0 and Sunday as 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// daysPerMonth for a common year, January first
var daysPerMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is a calendar date derived from a year and day-of-year
type Date struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Day     int     `json:"day"`
	Weekday Weekday `json:"weekday"`
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsLeapYear reports whether year has 366 days
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns 365 or 366
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// DaysInMonth returns the number of days in month (1-12) of year, or 0 for
// an invalid month.
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return daysPerMonth[month-1]
}

// MonthDay converts a 1-based day-of-year into month and day. When doy does
// not fit in year, ok is false and the sentinel (1, 1) is returned.
func MonthDay(doy, year int) (month, day int, ok bool) {
	if doy < 1 {
		return 1, 1, false
	}
	remaining := doy
	for m := 1; m <= 12; m++ {
		n := DaysInMonth(year, m)
		if remaining <= n {
			return m, remaining, true
		}
		remaining -= n
	}
	return 1, 1, false
}

// DayOfYearToMonthDay is MonthDay without the ok flag. Malformed input
// yields (1, 1); callers are expected to range-check doy beforehand.
func DayOfYearToMonthDay(doy, year int) (month, day int) {
	month, day, _ = MonthDay(doy, year)
	return month, day
}

// WeekdayOf computes the day of the week with Zeller's congruence.
// January and February count as months 13 and 14 of the previous year.
func WeekdayOf(year, month, day int) Weekday {
	if month < 3 {
		month += 12
		year--
	}
	k := year % 100
	j := year / 100
	// h: 0 = Saturday, 1 = Sunday, 2 = Monday, ...
	h := (day + 13*(month+1)/5 + k + k/4 + j/4 + 5*j) % 7
	return Weekday((h + 5) % 7)
}

// NewDate builds a Date from year and day-of-year
func NewDate(year, doy int) (Date, bool) {
	month, day, ok := MonthDay(doy, year)
	if !ok {
		return Date{}, false
	}
	return Date{
		Year:    year,
		Month:   month,
		Day:     day,
		Weekday: WeekdayOf(year, month, day),
	}, true
}

// AddDays moves (year, doy) by delta days, crossing year boundaries as
// needed.
func AddDays(year, doy, delta int) (int, int) {
	doy += delta
	for doy < 1 {
		year--
		doy += DaysInYear(year)
	}
	for doy > DaysInYear(year) {
		doy -= DaysInYear(year)
		year++
	}
	return year, doy
}
