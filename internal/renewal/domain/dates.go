package domain

import "time"

const dateLayout = "2006-01-02"

// NormalizeDate extracts a YYYY-MM-DD date from a raw value. Inputs may be a
// bare date, an RFC 3339 timestamp, or spreadsheet-imported free text; only a
// leading date prefix is trusted. Returns false for anything that does not
// start with a valid calendar date.
func NormalizeDate(raw string) (string, bool) {
	if len(raw) < len(dateLayout) {
		return "", false
	}

	prefix := raw[:len(dateLayout)]
	if prefix[4] != '-' || prefix[7] != '-' {
		return "", false
	}
	for _, i := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if prefix[i] < '0' || prefix[i] > '9' {
			return "", false
		}
	}

	// Rejects impossible dates like 2024-02-31.
	if _, err := time.Parse(dateLayout, prefix); err != nil {
		return "", false
	}

	return prefix, true
}

// Today renders the evaluation day for a wall-clock instant. Date arithmetic
// is done on whole days in UTC so time-of-day and timezone drift cannot
// produce off-by-one windows.
func Today(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

// DaysBetween returns the whole-day difference to - from for two normalized
// YYYY-MM-DD dates. Both sides must already be normalized; callers obtain
// them from NormalizeDate or Today.
func DaysBetween(from, to string) int {
	fromDay, err1 := time.Parse(dateLayout, from)
	toDay, err2 := time.Parse(dateLayout, to)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(toDay.Sub(fromDay).Hours() / 24)
}
