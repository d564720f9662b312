// Package duration provides parsing for human-readable duration strings.
package duration

import (
	"fmt"
	"strings"
	"time"
)

// Parse parses durations like "500ms", "30s", "12h", "1d" or "2w". Anything
// time.ParseDuration accepts is accepted as is; day, week, month and year
// units are added on top.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 30s, 12h, 1d)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}

	switch unit {
	case "s", "sec", "secs":
		return time.Duration(n) * time.Second, nil
	case "m", "min", "mins":
		return time.Duration(n) * time.Minute, nil
	case "h", "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * 24 * time.Hour, nil
	case "w", "wk", "wks", "week", "weeks":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case "mo", "month", "months":
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	case "y", "yr", "yrs", "year", "years":
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", unit)
	}
}

// OrDefault parses s and falls back to def when s is empty or invalid.
func OrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := Parse(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
