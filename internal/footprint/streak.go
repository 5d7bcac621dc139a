package footprint

import (
	"fmt"
	"time"
)

const DayKeyLayout = "2006-01-02"

// DayKey truncates an ISO-8601 date or RFC 3339 timestamp to its calendar
// date. The whole string must parse. The date part is taken as written, with
// no timezone conversion, so "2024-01-05T23:30:00-05:00" belongs to
// 2024-01-05 even though it is already the 6th in UTC. Travellers crossing
// timezones can therefore see an apparent skipped or repeated day.
func DayKey(iso string) (string, error) {
	if _, err := time.Parse(DayKeyLayout, iso); err == nil {
		return iso, nil
	}
	if _, err := time.Parse(time.RFC3339, iso); err == nil {
		return iso[:len(DayKeyLayout)], nil
	}
	return "", &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not an ISO date", iso)}
}

// DayKeyOf formats t's own calendar date.
func DayKeyOf(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// PreviousDayKey returns the calendar day before key. Arithmetic is done on a
// UTC midnight so DST transitions never skip or repeat a day.
func PreviousDayKey(key string) (string, error) {
	d, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return "", &ValidationError{Field: "dayKey", Reason: fmt.Sprintf("%q is not a day key", key)}
	}
	return d.AddDate(0, 0, -1).Format(DayKeyLayout), nil
}

// NextStreak computes the streak after a log on today. lastKey is empty when
// the user has never logged.
//
//   - same day as the last log: unchanged
//   - the day after the last log: +1
//   - anything else: reset to 1
func NextStreak(lastKey string, streak int, today string) int {
	if lastKey != "" && lastKey == today {
		return streak
	}
	yesterday, err := PreviousDayKey(today)
	if err == nil && lastKey == yesterday {
		return streak + 1
	}
	return 1
}
