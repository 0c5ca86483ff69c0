package aggregation

import (
	"errors"
	"testing"
	"time"

	"github.com/kadkongta/crowd-insight/internal/database"
)

type fakeReader struct {
	samples []*database.OccupancySample
	err     error
}

func (f *fakeReader) SamplesBetween(from, to time.Time) ([]*database.OccupancySample, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*database.OccupancySample
	for _, s := range f.samples {
		if !s.RecordedAt.Before(from) && !s.RecordedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func sampleAt(t time.Time, count int) *database.OccupancySample {
	return &database.OccupancySample{Count: count, RecordedAt: t, Source: database.SourceLive}
}

func zoneSampleAt(t time.Time, count int, zone string) *database.OccupancySample {
	s := sampleAt(t, count)
	s.ZoneCode = &zone
	return s
}

var testDate = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func TestDailySummary(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		sampleAt(testDate.Add(10*time.Hour), 10),
		sampleAt(testDate.Add(14*time.Hour), 50),
		sampleAt(testDate.Add(19*time.Hour), 90),
	}}
	engine := NewEngine(reader)

	summary, err := engine.DailySummary(testDate)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}

	if summary.MaxCount != 90 {
		t.Errorf("MaxCount = %d, want 90", summary.MaxCount)
	}
	if summary.MinCount != 10 {
		t.Errorf("MinCount = %d, want 10", summary.MinCount)
	}
	if summary.AvgCount != 50 {
		t.Errorf("AvgCount = %d, want 50", summary.AvgCount)
	}
	if summary.SampleCount != 3 {
		t.Errorf("SampleCount = %d, want 3", summary.SampleCount)
	}
}

func TestDailySummary_EmptyDateIsZero(t *testing.T) {
	engine := NewEngine(&fakeReader{})

	summary, err := engine.DailySummary(testDate)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}

	if summary.MaxCount != 0 || summary.MinCount != 0 || summary.AvgCount != 0 || summary.SampleCount != 0 {
		t.Errorf("Expected zero summary, got %+v", summary)
	}
}

func TestDailySummary_RoundsAverage(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		sampleAt(testDate.Add(10*time.Hour), 1),
		sampleAt(testDate.Add(11*time.Hour), 2),
	}}
	engine := NewEngine(reader)

	summary, err := engine.DailySummary(testDate)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}

	// (1+2+1)/2 = 2, rounded not truncated
	if summary.AvgCount != 2 {
		t.Errorf("AvgCount = %d, want 2", summary.AvgCount)
	}
}

func TestDailySummary_ExcludesNeighboringDays(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		sampleAt(testDate.Add(-time.Second), 500),
		sampleAt(testDate.Add(12*time.Hour), 100),
		sampleAt(testDate.Add(24*time.Hour), 500),
	}}
	engine := NewEngine(reader)

	summary, err := engine.DailySummary(testDate)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}

	if summary.SampleCount != 1 || summary.MaxCount != 100 {
		t.Errorf("Window leaked neighboring days: %+v", summary)
	}
}

func TestDailySummary_PropagatesStoreError(t *testing.T) {
	engine := NewEngine(&fakeReader{err: errors.New("connection refused")})

	if _, err := engine.DailySummary(testDate); err == nil {
		t.Error("Expected store error to propagate")
	}
}

func TestHistoricalSummary_NewestFirstSkippingEmptyDays(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		sampleAt(testDate.Add(18*time.Hour), 300),
		// no samples on the 9th
		sampleAt(testDate.AddDate(0, 0, -2).Add(18*time.Hour), 200),
	}}
	engine := NewEngine(reader)
	engine.now = func() time.Time { return testDate.Add(23 * time.Hour) }

	summaries, err := engine.HistoricalSummary(7)
	if err != nil {
		t.Fatalf("HistoricalSummary failed: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if !summaries[0].Date.Equal(testDate) {
		t.Errorf("First summary date = %v, want %v", summaries[0].Date, testDate)
	}
	if summaries[0].MaxCount != 300 {
		t.Errorf("First summary MaxCount = %d, want 300", summaries[0].MaxCount)
	}
	if !summaries[1].Date.Equal(testDate.AddDate(0, 0, -2)) {
		t.Errorf("Second summary date = %v, want %v", summaries[1].Date, testDate.AddDate(0, 0, -2))
	}
}

func TestHistoricalSummary_BucketsAcrossLocations(t *testing.T) {
	bangkok := time.FixedZone("UTC+7", 7*3600)

	// Recorded at 18:00 UTC, which is already the next calendar date in the
	// server's zone. The row must land in that date's bucket, not vanish.
	recorded := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	reader := &fakeReader{samples: []*database.OccupancySample{sampleAt(recorded, 120)}}
	engine := NewEngine(reader)
	engine.now = func() time.Time { return time.Date(2026, 1, 11, 2, 0, 0, 0, bangkok) }

	summaries, err := engine.HistoricalSummary(7)
	if err != nil {
		t.Fatalf("HistoricalSummary failed: %v", err)
	}

	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	want := time.Date(2026, 1, 11, 0, 0, 0, 0, bangkok)
	if !summaries[0].Date.Equal(want) {
		t.Errorf("Summary date = %v, want %v", summaries[0].Date, want)
	}
	if summaries[0].MaxCount != 120 || summaries[0].SampleCount != 1 {
		t.Errorf("Summary = %+v, want the UTC sample counted", summaries[0])
	}
}

func TestWeeklyRollup(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		sampleAt(testDate.Add(18*time.Hour), 400),
		sampleAt(testDate.Add(19*time.Hour), 600),
		sampleAt(testDate.AddDate(0, 0, -1).Add(18*time.Hour), 200),
	}}
	engine := NewEngine(reader)
	engine.now = func() time.Time { return testDate.Add(23 * time.Hour) }

	rollup, err := engine.WeeklyRollup()
	if err != nil {
		t.Fatalf("WeeklyRollup failed: %v", err)
	}

	if rollup.TotalDays != 2 {
		t.Errorf("TotalDays = %d, want 2", rollup.TotalDays)
	}
	if rollup.MaxCount != 600 {
		t.Errorf("MaxCount = %d, want 600", rollup.MaxCount)
	}
	// daily avgs are 500 and 200, mean is 350
	if rollup.AvgCount != 350 {
		t.Errorf("AvgCount = %d, want 350", rollup.AvgCount)
	}
}

func TestWeeklyRollup_EmptyWindow(t *testing.T) {
	engine := NewEngine(&fakeReader{})
	engine.now = func() time.Time { return testDate }

	rollup, err := engine.WeeklyRollup()
	if err != nil {
		t.Fatalf("WeeklyRollup failed: %v", err)
	}

	if rollup.TotalDays != 0 || rollup.MaxCount != 0 || rollup.AvgCount != 0 {
		t.Errorf("Expected zero rollup, got %+v", rollup)
	}
}

func TestZoneBreakdown(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		zoneSampleAt(testDate.Add(18*time.Hour), 100, "zone-a"),
		zoneSampleAt(testDate.Add(19*time.Hour), 250, "zone-a"),
		zoneSampleAt(testDate.Add(18*time.Hour), 40, "zone-b"),
		sampleAt(testDate.Add(18*time.Hour), 500),
	}}
	engine := NewEngine(reader)

	totals, peaks, err := engine.ZoneBreakdown(testDate)
	if err != nil {
		t.Fatalf("ZoneBreakdown failed: %v", err)
	}

	if totals["zone-a"] != 350 || peaks["zone-a"] != 250 {
		t.Errorf("zone-a: total=%d peak=%d, want 350/250", totals["zone-a"], peaks["zone-a"])
	}
	if totals["zone-b"] != 40 || peaks["zone-b"] != 40 {
		t.Errorf("zone-b: total=%d peak=%d, want 40/40", totals["zone-b"], peaks["zone-b"])
	}
	if totals["venue"] != 500 || peaks["venue"] != 500 {
		t.Errorf("venue: total=%d peak=%d, want 500/500", totals["venue"], peaks["venue"])
	}
}

func TestHourlySummary(t *testing.T) {
	reader := &fakeReader{samples: []*database.OccupancySample{
		sampleAt(testDate.Add(18*time.Hour), 100),
		sampleAt(testDate.Add(18*time.Hour+30*time.Minute), 200),
		sampleAt(testDate.Add(9*time.Hour), 15),
	}}
	engine := NewEngine(reader)

	buckets, err := engine.HourlySummary(testDate)
	if err != nil {
		t.Fatalf("HourlySummary failed: %v", err)
	}

	if len(buckets) != 24 {
		t.Fatalf("Expected 24 buckets, got %d", len(buckets))
	}

	b18 := buckets[18]
	if b18.Hour != 18 || b18.MaxCount != 200 || b18.AvgCount != 150 || b18.SampleCount != 2 {
		t.Errorf("Hour 18 bucket: %+v", b18)
	}

	b9 := buckets[9]
	if b9.MaxCount != 15 || b9.SampleCount != 1 {
		t.Errorf("Hour 9 bucket: %+v", b9)
	}

	// empty hours are present and zero-valued
	b3 := buckets[3]
	if b3.Hour != 3 || b3.MaxCount != 0 || b3.AvgCount != 0 || b3.SampleCount != 0 {
		t.Errorf("Hour 3 bucket: %+v", b3)
	}
}
