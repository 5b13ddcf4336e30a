// Package timeutil provides school-calendar time helpers. The academic year
// runs September through August; "year" throughout the codebase means the
// calendar year the academic year starts in.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// SchoolYearStartMonth is the month a new academic year begins.
const SchoolYearStartMonth = time.September

// SchoolYear returns the academic year containing t: 2025 covers
// September 2025 through August 2026.
func SchoolYear(t time.Time) int {
	t = t.UTC()
	if t.Month() >= SchoolYearStartMonth {
		return t.Year()
	}
	return t.Year() - 1
}

// CurrentSchoolYear returns the academic year containing now.
func CurrentSchoolYear() int {
	return SchoolYear(time.Now())
}

// SchoolYearStart returns the first instant of the academic year.
func SchoolYearStart(year int) time.Time {
	return time.Date(year, SchoolYearStartMonth, 1, 0, 0, 0, 0, time.UTC)
}

// SchoolYearEnd returns the first instant after the academic year.
func SchoolYearEnd(year int) time.Time {
	return SchoolYearStart(year + 1)
}

// InSchoolYear checks whether t falls inside the academic year.
func InSchoolYear(t time.Time, year int) bool {
	t = t.UTC()
	return !t.Before(SchoolYearStart(year)) && t.Before(SchoolYearEnd(year))
}

// StartOfDay returns the start of t's day in UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay checks whether two instants fall on the same UTC day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DateFormat is the wire format for dates.
const DateFormat = "2006-01-02"

// FormatDate formats t as a YYYY-MM-DD string in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}
