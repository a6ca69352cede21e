package ledger

import "time"

// DateOf truncates t to midnight of its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarDay reads d as a plain calendar date, such as a value scanned from a
// DATE column, and returns midnight of that same day in loc. Unlike d.In(loc)
// it never moves the date.
func CalendarDay(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// DaysInclusive counts the calendar days in [from, to], or 0 when to precedes from.
func DaysInclusive(from, to time.Time) int {
	a := CalendarDay(from, time.UTC)
	b := CalendarDay(to, time.UTC)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a)/(24*time.Hour)) + 1
}

// MonthsInclusive counts the calendar months touched by [from, to], so a range
// inside a single month counts 1. It returns 0 when to precedes from's month.
func MonthsInclusive(from, to time.Time) int {
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
	if n < 0 {
		return 0
	}
	return n
}

// MonthWindow returns the first and last day of month/year in loc.
func MonthWindow(month, year int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, -1)
}

// PreviousMonth returns the calendar month before month/year.
func PreviousMonth(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}

// withinDays reports whether t's calendar day falls in [from, to].
func withinDays(t, from, to time.Time) bool {
	day := DateOf(t.In(from.Location()))
	return !day.Before(from) && !day.After(to)
}
