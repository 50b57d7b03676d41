package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IPMTRow is one persisted, editable indicator line of a compiled period.
// Identity is (PersonnelID, UnitID, Month, IndicatorID).
type IPMTRow struct {
	ID                   string
	PersonnelID          string
	UnitID               string
	Month                string
	IndicatorID          string
	IndicatorCode        string
	IndicatorDescription string
	Accomplishment       string
	Remarks              string
	RecordIDs            []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IndicatorLabel renders the row's indicator as "CODE - description".
func (r IPMTRow) IndicatorLabel() string {
	return SuccessIndicator{Code: r.IndicatorCode, Description: r.IndicatorDescription}.Label()
}

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

var monthFilterPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// ParseMonth parses the "YYYY-MM" filter form.
func ParseMonth(raw string) (Month, error) {
	m := monthFilterPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Month{}, fmt.Errorf("%w: %q, expected YYYY-MM", ErrMalformedMonth, raw)
	}
	year, _ := strconv.Atoi(m[1])
	num, _ := strconv.Atoi(m[2])
	if num < 1 || num > 12 {
		return Month{}, fmt.Errorf("%w: month %d out of range", ErrMalformedMonth, num)
	}
	return Month{Year: year, Month: time.Month(num)}, nil
}

// ParseMonthLabel parses the "March 2025" label form.
func ParseMonthLabel(raw string) (Month, error) {
	t, err := time.Parse("January 2006", strings.Join(strings.Fields(raw), " "))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrMalformedMonth, raw)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// ParseMonthAny accepts either the filter or the label form.
func ParseMonthAny(raw string) (Month, error) {
	if m, err := ParseMonth(raw); err == nil {
		return m, nil
	}
	if m, err := ParseMonthLabel(raw); err == nil {
		return m, nil
	}
	return Month{}, fmt.Errorf("%w: %q", ErrMalformedMonth, raw)
}

// Label renders "March 2025".
func (m Month) Label() string {
	return fmt.Sprintf("%s %d", m.Month.String(), m.Year)
}

// Filter renders "2025-03".
func (m Month) Filter() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Range returns the half-open instant range [start, end) of the month in loc.
func (m Month) Range(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// ContainsDate reports whether a calendar date falls inside the month.
func (m Month) ContainsDate(date time.Time) bool {
	return date.Year() == m.Year && date.Month() == m.Month
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}
