package scoring

import "time"

// NextStreak returns the daily streak after activity on day. Activity the day
// after lastActive extends the streak, a repeat on the same day keeps it, and
// anything else starts over at 1. Days compare in UTC.
func NextStreak(current int, lastActive *time.Time, day time.Time) int {
	today := truncateDay(day)
	if lastActive == nil || current <= 0 {
		return 1
	}
	last := truncateDay(*lastActive)
	switch {
	case last.Equal(today):
		return current
	case last.AddDate(0, 0, 1).Equal(today):
		return current + 1
	default:
		return 1
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day returns t's UTC calendar date at midnight.
func Day(t time.Time) time.Time {
	return truncateDay(t)
}
