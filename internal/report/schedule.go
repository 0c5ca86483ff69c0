package report

import (
	"fmt"
	"time"
)

// NextRunAt returns the next occurrence of a daily HH:MM trigger after now.
// Rescheduling from the fired callback keeps the cadence drift-free; the
// dispatcher's idempotency guard absorbs duplicate fires.
func NextRunAt(now time.Time, timeOfDay string) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("time of day out of range: %s", timeOfDay)
	}

	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(todayRun) {
		return todayRun, nil
	}

	return todayRun.AddDate(0, 0, 1), nil
}
