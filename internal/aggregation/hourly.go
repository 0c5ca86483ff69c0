package aggregation

import (
	"time"
)

// HourlyBucket is the reduction of one hour-of-day within a date
type HourlyBucket struct {
	Hour        int `json:"hour"`
	MaxCount    int `json:"max_count"`
	AvgCount    int `json:"avg_count"`
	SampleCount int `json:"sample_count"`
}

// HourlySummary buckets the date's samples by hour-of-day (00-23). Every
// hour is present in the result; empty hours carry zero values.
func (e *Engine) HourlySummary(date time.Time) ([]HourlyBucket, error) {
	start, end := dayBounds(date)

	samples, err := e.store.SamplesBetween(start, end)
	if err != nil {
		return nil, err
	}

	buckets := make([]HourlyBucket, 24)
	sums := make([]int, 24)

	for hour := range buckets {
		buckets[hour].Hour = hour
	}

	for _, s := range samples {
		hour := s.RecordedAt.Hour()
		b := &buckets[hour]

		b.SampleCount++
		sums[hour] += s.Count
		if s.Count > b.MaxCount {
			b.MaxCount = s.Count
		}
	}

	for hour := range buckets {
		if buckets[hour].SampleCount > 0 {
			buckets[hour].AvgCount = roundedDiv(sums[hour], buckets[hour].SampleCount)
		}
	}

	return buckets, nil
}
