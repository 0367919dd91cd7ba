// Package timeutil provides timezone and date-format utilities for the
// grad record hub. TRAX and the ministry systems operate on Pacific time,
// and TRAX serializes dates in its own compact format, so all parsing and
// formatting of exchanged dates is centralized here.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// PacificTZ is the Pacific timezone used by the ministry systems.
// Falls back to a fixed UTC-8 zone if the tzdata is unavailable.
var PacificTZ = loadPacific()

func loadPacific() *time.Location {
	loc, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}

// Now returns the current time in Pacific timezone.
func Now() time.Time {
	return time.Now().In(PacificTZ)
}

// ToPacific converts a time to Pacific timezone.
func ToPacific(t time.Time) time.Time {
	return t.In(PacificTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a midnight UTC time with the given date. Exchanged dates
// (birthdates, completion dates) are date-only values and are stored
// normalized to UTC midnight.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Common date formats.
const (
	// FormatTraxDate is the compact TRAX date format (yyyyMMdd).
	FormatTraxDate = "20060102"
	// FormatISODate is the standard date format (YYYY-MM-DD).
	FormatISODate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04:05"
)

// ParseTraxDate parses a TRAX date string (yyyyMMdd) into a UTC midnight time.
func ParseTraxDate(value string) (time.Time, error) {
	t, err := time.Parse(FormatTraxDate, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse trax date %q: %w", value, err)
	}
	return t, nil
}

// ParseISODate parses an ISO date string (YYYY-MM-DD) into a UTC midnight time.
func ParseISODate(value string) (time.Time, error) {
	t, err := time.Parse(FormatISODate, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse iso date %q: %w", value, err)
	}
	return t, nil
}

// FormatTraxDate8 formats a time as a TRAX date string (yyyyMMdd).
func FormatTraxDate8(t time.Time) string {
	return t.Format(FormatTraxDate)
}

// FormatISO formats a time as an ISO date string (YYYY-MM-DD).
func FormatISO(t time.Time) string {
	return t.Format(FormatISODate)
}

// IsSameDate checks if two times fall on the same calendar date in UTC.
func IsSameDate(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// School year boundaries. The BC school year runs September 1 through
// August 31; reporting and purge windows are aligned to it.

// SchoolYearStart returns September 1 of the school year containing t.
func SchoolYearStart(t time.Time) time.Time {
	p := ToPacific(t)
	year := p.Year()
	if p.Month() < time.September {
		year--
	}
	return time.Date(year, time.September, 1, 0, 0, 0, 0, PacificTZ)
}

// SchoolYearEnd returns August 31 (23:59:59) of the school year containing t.
func SchoolYearEnd(t time.Time) time.Time {
	start := SchoolYearStart(t)
	return start.AddDate(1, 0, -1).Add(24*time.Hour - time.Second)
}

// SchoolYearLabel returns the "2023/2024" style label for the school year
// containing t.
func SchoolYearLabel(t time.Time) string {
	start := SchoolYearStart(t)
	return fmt.Sprintf("%d/%d", start.Year(), start.Year()+1)
}

// DaysBetween calculates the number of whole days between two times.
func DaysBetween(t1, t2 time.Time) int {
	d := t2.Sub(t1)
	days := int(d.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// AgeAt returns full years elapsed between birthdate and the given moment.
func AgeAt(birthdate, at time.Time) int {
	years := at.Year() - birthdate.Year()
	anniversary := birthdate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}
