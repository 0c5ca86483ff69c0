package database

import (
	"time"
)

// Sample sources, ranked by trust.
const (
	SourceLive      = "live"
	SourcePoll      = "poll"
	SourceSynthetic = "synthetic"
)

// OccupancySample is one stored count measurement. Rows are immutable once
// written and are pruned only by the retention job.
type OccupancySample struct {
	ID         int64
	ZoneCode   *string
	Count      int
	RecordedAt time.Time
	Source     string
	ReceivedAt time.Time
}

// DailyReport is the per-date rollup delivered to the broadcast channel.
// The report_date unique key makes the upsert the idempotency guard.
type DailyReport struct {
	ID             int64
	ReportDate     time.Time
	MaxPeople      int
	AvgPeople      int
	MinPeople      int
	TotalSamples   int
	PerZoneTotals  map[string]int
	PerZonePeaks   map[string]int
	WeatherSummary string
	TemperatureAvg *float64
	PM25Avg        *float64
	PM25Status     string
	IsSentLine     bool
	SentAt         *time.Time
	CreatedAt      time.Time
}

// Delivery log message types.
const (
	DeliveryTypeDailyReport  = "daily_report"
	DeliveryTypeEarlyWarning = "early_warning"
)

// Delivery statuses.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// DeliveryLogEntry is one broadcast attempt. The table is append-only so the
// retry history stays inspectable.
type DeliveryLogEntry struct {
	ID           int64
	ReportDate   time.Time
	MessageType  string
	Payload      string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
}
