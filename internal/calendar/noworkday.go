package calendar

import (
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// IsBlocked reports whether any no-work day has exactly this date string.
func IsBlocked(date string, days []models.NoWorkDay) bool {
	_, ok := ReasonFor(date, days)
	return ok
}

// ReasonFor returns the reason of the first no-work day matching date.
// Duplicates are not rejected here; whichever comes first wins.
func ReasonFor(date string, days []models.NoWorkDay) (string, bool) {
	for _, d := range days {
		if d.Date == date {
			return d.Reason, true
		}
	}
	return "", false
}

// SplitUpcoming partitions no-work days into those on or after today and
// those before it, preserving order.
func SplitUpcoming(days []models.NoWorkDay, today Date) (upcoming, past []models.NoWorkDay) {
	for _, d := range days {
		parsed, err := ParseDate(d.Date)
		if err == nil && parsed.Before(today) {
			past = append(past, d)
			continue
		}
		upcoming = append(upcoming, d)
	}
	return upcoming, past
}
