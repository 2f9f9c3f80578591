package utils

import "time"

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// LongestGap returns the largest number of weekdays strictly between two
// consecutive dates. Dates must be sorted ascending. Weekends never count,
// so a Friday→Monday step is a gap of 0.
func LongestGap(dates []time.Time) int {
	longest := 0
	for i := 1; i < len(dates); i++ {
		if g := weekdaysBetween(dates[i-1], dates[i]); g > longest {
			longest = g
		}
	}
	return longest
}

// weekdaysBetween counts weekdays strictly after a and strictly before b.
func weekdaysBetween(a, b time.Time) int {
	a = truncateDay(a)
	b = truncateDay(b)
	count := 0
	for d := a.AddDate(0, 0, 1); d.Before(b); d = d.AddDate(0, 0, 1) {
		if isWeekday(d) {
			count++
		}
	}
	return count
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
