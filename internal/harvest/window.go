package harvest

import (
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Cutoff returns the oldest instant window admits. The zero time means
// no bound.
func Cutoff(window model.TimeRange, now time.Time) time.Time {
	switch window {
	case model.TimeRangeLastWeek, "":
		return now.AddDate(0, 0, -7)
	case model.TimeRangeLastMonth:
		return now.AddDate(0, -1, 0)
	case model.TimeRangeLastYear:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

// FilterWindow keeps the items published at or after the window's cutoff.
// Items without a parseable timestamp are kept.
func FilterWindow(items []model.RawItem, window model.TimeRange, now time.Time) []model.RawItem {
	cutoff := Cutoff(window, now)
	if cutoff.IsZero() {
		return items
	}

	kept := make([]model.RawItem, 0, len(items))
	for _, item := range items {
		ts, err := time.Parse(time.RFC3339, item.Timestamp)
		if err != nil || !ts.Before(cutoff) {
			kept = append(kept, item)
		}
	}
	return kept
}
