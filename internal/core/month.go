// Package core provides the reporting data rows and month arithmetic
// shared by the statement builder and the KPI calculations.
//
// Months are carried on rows as "YYYY-MM" strings so they compare
// lexicographically in chronological order; Month is the parsed form used
// when arithmetic is needed.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// FTEHoursPerYear is the standard number of hours worked by one FTE in a year.
	FTEHoursPerYear = 2080
	// FTEHoursPerLeapYear accounts for the extra working day in a leap year.
	FTEHoursPerLeapYear = 2088
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month int // 1-12
}

// ParseMonth parses a "YYYY-MM" string. A longer date string such as
// "2024-03-01" or "2024-03-01T00:00:00" is accepted and truncated to its month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) > 7 {
		s = s[:7]
	}
	year, month, ok := strings.Cut(s, "-")
	if !ok || len(year) != 4 || len(month) != 2 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: y, Month: m}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Label formats the month for display, e.g. "Jan 2024".
func (m Month) Label() string {
	return m.FirstDay().Format("Jan 2006")
}

// FirstDay returns midnight UTC on the first day of the month.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns midnight UTC on the last day of the month.
func (m Month) LastDay() time.Time {
	return m.FirstDay().AddDate(0, 1, -1)
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.FirstDay().AddDate(0, n, 0))
}

// PriorYear returns the same month one year earlier.
func (m Month) PriorYear() Month {
	return Month{Year: m.Year - 1, Month: m.Month}
}

// YearPrefix is the "YYYY" prefix shared by every month string of the year.
func (m Month) YearPrefix() string {
	return fmt.Sprintf("%04d", m.Year)
}

// InYearThrough reports whether the "YYYY-MM" string month falls in the
// same calendar year as m and on or before it.
func (m Month) InYearThrough(month string) bool {
	return strings.HasPrefix(month, m.YearPrefix()) && month <= m.String()
}

// IsLeapYear reports whether year has 366 days.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// FTEHoursInYear returns the standard FTE hours for the given year.
func FTEHoursInYear(year int) float64 {
	if IsLeapYear(year) {
		return FTEHoursPerLeapYear
	}
	return FTEHoursPerYear
}

// FractionOfYearThrough returns the fraction of the year elapsed from
// January 1 through the last day of m, counting actual days.
func FractionOfYearThrough(m Month) float64 {
	days := m.LastDay().YearDay()
	return float64(days) / float64(DaysInYear(m.Year))
}
