// Package aggregation computes read-side statistical rollups over the
// sample store. All queries are pure: no side effects, and an empty range
// yields a zero-valued summary rather than an error.
package aggregation

import (
	"time"

	"github.com/kadkongta/crowd-insight/internal/database"
)

// SampleReader is the slice of the store the engine needs
type SampleReader interface {
	SamplesBetween(from, to time.Time) ([]*database.OccupancySample, error)
}

// DailySummary is the reduction of one calendar date's samples
type DailySummary struct {
	Date        time.Time `json:"date"`
	MaxCount    int       `json:"max_count"`
	AvgCount    int       `json:"avg_count"`
	MinCount    int       `json:"min_count"`
	SampleCount int       `json:"sample_count"`
}

// WeeklyRollup summarizes the trailing seven days
type WeeklyRollup struct {
	TotalDays int            `json:"total_days"`
	MaxCount  int            `json:"max_count"`
	AvgCount  int            `json:"avg_count"`
	Days      []DailySummary `json:"days"`
}

// Engine runs rollup queries against the sample store
type Engine struct {
	store SampleReader
	now   func() time.Time
}

// NewEngine creates an aggregation engine
func NewEngine(store SampleReader) *Engine {
	return &Engine{store: store, now: time.Now}
}

// dayBounds returns the inclusive [00:00:00, 23:59:59] window for a date
func dayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.Add(24*time.Hour - time.Second)
	return start, end
}

// DailySummary reduces the date's samples to max/avg/min/count
func (e *Engine) DailySummary(date time.Time) (DailySummary, error) {
	start, end := dayBounds(date)

	samples, err := e.store.SamplesBetween(start, end)
	if err != nil {
		return DailySummary{}, err
	}

	return reduce(start, samples), nil
}

// HistoricalSummary returns one row per calendar date with samples in the
// trailing window, newest first
func (e *Engine) HistoricalSummary(days int) ([]DailySummary, error) {
	now := e.now()
	windowStart, _ := dayBounds(now.AddDate(0, 0, -(days - 1)))

	samples, err := e.store.SamplesBetween(windowStart, now)
	if err != nil {
		return nil, err
	}

	// Bucket by calendar date in the query clock's location. Stored rows can
	// come back in a different zone than the server clock, and time.Time map
	// keys compare the location too, so bucketing must go through one zone.
	loc := now.Location()
	byDate := make(map[string][]*database.OccupancySample)
	for _, s := range samples {
		key := s.RecordedAt.In(loc).Format("2006-01-02")
		byDate[key] = append(byDate[key], s)
	}

	summaries := make([]DailySummary, 0, len(byDate))
	for day := now; !day.Before(windowStart); day = day.AddDate(0, 0, -1) {
		if daySamples, ok := byDate[day.Format("2006-01-02")]; ok {
			start, _ := dayBounds(day)
			summaries = append(summaries, reduce(start, daySamples))
		}
	}

	return summaries, nil
}

// WeeklyRollup aggregates the trailing seven days
func (e *Engine) WeeklyRollup() (WeeklyRollup, error) {
	days, err := e.HistoricalSummary(7)
	if err != nil {
		return WeeklyRollup{}, err
	}

	rollup := WeeklyRollup{TotalDays: len(days), Days: days}

	if len(days) == 0 {
		return rollup, nil
	}

	avgSum := 0
	for _, d := range days {
		if d.MaxCount > rollup.MaxCount {
			rollup.MaxCount = d.MaxCount
		}
		avgSum += d.AvgCount
	}
	rollup.AvgCount = roundedDiv(avgSum, len(days))

	return rollup, nil
}

// ZoneBreakdown reduces a date's samples per zone. Space-wide samples
// (no zone code) are keyed under "venue".
func (e *Engine) ZoneBreakdown(date time.Time) (totals map[string]int, peaks map[string]int, err error) {
	start, end := dayBounds(date)

	samples, err := e.store.SamplesBetween(start, end)
	if err != nil {
		return nil, nil, err
	}

	totals = make(map[string]int)
	peaks = make(map[string]int)

	for _, s := range samples {
		zone := "venue"
		if s.ZoneCode != nil && *s.ZoneCode != "" {
			zone = *s.ZoneCode
		}
		totals[zone] += s.Count
		if s.Count > peaks[zone] {
			peaks[zone] = s.Count
		}
	}

	return totals, peaks, nil
}

func reduce(date time.Time, samples []*database.OccupancySample) DailySummary {
	summary := DailySummary{Date: date}

	if len(samples) == 0 {
		return summary
	}

	summary.SampleCount = len(samples)
	summary.MinCount = samples[0].Count
	sum := 0

	for _, s := range samples {
		if s.Count > summary.MaxCount {
			summary.MaxCount = s.Count
		}
		if s.Count < summary.MinCount {
			summary.MinCount = s.Count
		}
		sum += s.Count
	}

	summary.AvgCount = roundedDiv(sum, len(samples))
	return summary
}

func roundedDiv(sum, n int) int {
	return (sum + n/2) / n
}
