package sources

import (
	"fmt"
	"strings"
	"time"
)

// feedDateFormats is the ladder of date shapes observed in journal and blog
// feeds: RFC 2822 variants first, then ISO 8601 shapes, then bare dates.
var feedDateFormats = []string{
	time.RFC1123Z, // RFC 2822 with numeric timezone
	time.RFC1123,  // RFC 2822 with named timezone
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,                          // ISO 8601 with timezone
	"2006-01-02T15:04:05Z",                // ISO 8601 UTC
	"2006-01-02T15:04:05.999999999-07:00", // ISO 8601 with fractional seconds
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02", // ISO date only
	"2 Jan 2006", // day month year
	"2 Jan 2006 15:04:05",
	"2006-01-02 15:04:05", // common SQL shape
}

// ParseFeedDate parses the date formats commonly found in RSS/Atom feeds.
// Returns nil when no format matches.
func ParseFeedDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, format := range feedDateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return &t
		}
	}
	return nil
}

// ParseDateParts builds a date from CrossRef-style [year, month, day] parts
// with validation. Incomplete dates default the month and day to 1. Years
// outside [1900, current_year+1] are rejected.
func ParseDateParts(parts []int, now time.Time) (*time.Time, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty date parts")
	}

	year := parts[0]
	if year < 1900 || year > now.Year()+1 {
		return nil, fmt.Errorf("year %d out of range", year)
	}

	month, day := 1, 1
	if len(parts) > 1 {
		month = clampInt(parts[1], 1, 12)
	}
	if len(parts) > 2 {
		day = clampInt(parts[2], 1, 31)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// monthByName maps PubMed month spellings to month numbers.
var monthByName = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
	"January": time.January, "February": time.February, "March": time.March,
	"April": time.April, "June": time.June, "July": time.July,
	"August": time.August, "September": time.September,
	"October": time.October, "November": time.November, "December": time.December,
}

// parseMonth resolves a PubMed month token (name or number) to a month,
// defaulting to January.
func parseMonth(value string) time.Month {
	if m, ok := monthByName[value]; ok {
		return m
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err == nil && n >= 1 && n <= 12 {
		return time.Month(n)
	}
	return time.January
}
