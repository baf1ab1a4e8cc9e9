// Package timespec parses the date bounds accepted on the command line:
// relative forms such as "7d" or "24h", resolved against a caller-given
// clock, and absolute ISO dates or timestamps.
package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse resolves s relative to now. Relative values ("Nd", "Nh", "Nm")
// count back from now. Absolute values without a zone are read in
// now's location.
func Parse(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}

	if t, ok, err := parseRelative(s, now); ok {
		return t, err
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf(
		"invalid time %q: use an ISO date (2024-01-31), a timestamp, or a relative value like 7d or 24h", s,
	)
}

// parseRelative handles the "N<unit>" forms. ok is false when s is not
// shaped like a relative value at all.
func parseRelative(s string, now time.Time) (time.Time, bool, error) {
	lower := strings.ToLower(s)
	unit := lower[len(lower)-1]

	var step time.Duration
	switch unit {
	case 'd':
		step = 24 * time.Hour
	case 'h':
		step = time.Hour
	case 'm':
		step = time.Minute
	default:
		return time.Time{}, false, nil
	}

	digits := lower[:len(lower)-1]
	if digits == "" || strings.ContainsAny(digits, "-:T ") {
		return time.Time{}, false, nil
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("invalid relative time %q: %w", s, err)
	}
	if n < 0 {
		return time.Time{}, true, fmt.Errorf("invalid relative time %q: must not be negative", s)
	}

	if unit == 'd' {
		return now.AddDate(0, 0, -n), true, nil
	}
	return now.Add(-time.Duration(n) * step), true, nil
}
