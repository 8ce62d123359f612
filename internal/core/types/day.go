// Package types provides value types shared by entities, storage and reports.
package types

import (
	"fmt"
	"time"
)

// DayLayout is the only accepted textual form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar day in YYYY-MM-DD form. It carries no time of day and no
// zone: it is stored, compared and returned exactly as received, so a target
// entered for 2024-03-01 is reconciled as 2024-03-01 on every host.
type Day string

// ParseDay validates s and returns it as a Day.
func ParseDay(s string) (Day, error) {
	if len(s) != len(DayLayout) {
		return "", fmt.Errorf("invalid day %q: expected YYYY-MM-DD", s)
	}
	// time.Parse is used only as a calendar validator; the parsed value is discarded.
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day(s), nil
}

// MustDay parses s and panics on error. Tests and fixtures only.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String implements fmt.Stringer.
func (d Day) String() string { return string(d) }

// IsZero reports an unset day.
func (d Day) IsZero() bool { return d == "" }

// Validate checks the textual form.
func (d Day) Validate() error {
	_, err := ParseDay(string(d))
	return err
}

// Before compares lexically, which matches calendar order for YYYY-MM-DD.
func (d Day) Before(other Day) bool { return d < other }

// DaysBetween returns the inclusive number of calendar days in [from, to].
// Both days must be valid.
func DaysBetween(from, to Day) (int, error) {
	f, err := time.Parse(DayLayout, string(from))
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(DayLayout, string(to))
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours()/24) + 1, nil
}
