// Package report builds the per-date crowd report and delivers it to the
// broadcast channel exactly once per date.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/kadkongta/crowd-insight/internal/aggregation"
	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/metrics"
	"github.com/kadkongta/crowd-insight/internal/notify"
)

// Store is the persistence surface the dispatcher needs
type Store interface {
	UpsertDailyReport(report *database.DailyReport) error
	IsReportSent(date time.Time) (bool, error)
	MarkReportSent(date, sentAt time.Time) error
	AppendDeliveryLog(entry *database.DeliveryLogEntry) error
}

// Summarizer supplies the day's rollups
type Summarizer interface {
	DailySummary(date time.Time) (aggregation.DailySummary, error)
	ZoneBreakdown(date time.Time) (totals map[string]int, peaks map[string]int, err error)
}

// WeatherSource supplies ambient conditions for the report
type WeatherSource interface {
	Current(ctx context.Context) (*notify.Conditions, error)
}

// Broadcaster delivers a formatted payload to the messaging channel
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
}

// Dispatcher produces and delivers daily reports. The report_date upsert
// plus the is_sent flag make a re-run safe: the summary may be recomputed,
// but delivery happens at most once per date.
type Dispatcher struct {
	store       Store
	summaries   Summarizer
	weather     WeatherSource
	broadcaster Broadcaster
	weekendOnly bool
	now         func() time.Time
}

// NewDispatcher creates a report dispatcher
func NewDispatcher(store Store, summaries Summarizer, weather WeatherSource, broadcaster Broadcaster, weekendOnly bool) *Dispatcher {
	return &Dispatcher{
		store:       store,
		summaries:   summaries,
		weather:     weather,
		broadcaster: broadcaster,
		weekendOnly: weekendOnly,
		now:         time.Now,
	}
}

// OperatingDay reports whether the venue operates on the given day
func (d *Dispatcher) OperatingDay(t time.Time) bool {
	if !d.weekendOnly {
		return true
	}
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}

// BuildReport assembles the report for a date. Weather trouble degrades to
// empty ambient fields; the report always materializes.
func (d *Dispatcher) BuildReport(ctx context.Context, date time.Time) (*database.DailyReport, error) {
	summary, err := d.summaries.DailySummary(date)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", date.Format("2006-01-02"), err)
	}

	totals, peaks, err := d.summaries.ZoneBreakdown(date)
	if err != nil {
		return nil, fmt.Errorf("failed to break down zones: %w", err)
	}

	report := &database.DailyReport{
		ReportDate:    time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		MaxPeople:     summary.MaxCount,
		AvgPeople:     summary.AvgCount,
		MinPeople:     summary.MinCount,
		TotalSamples:  summary.SampleCount,
		PerZoneTotals: totals,
		PerZonePeaks:  peaks,
		PM25Status:    "no data",
	}

	conditions, err := d.weather.Current(ctx)
	if err != nil {
		fmt.Printf("[DailyReport] Weather unavailable: %v\n", err)
		return report, nil
	}

	report.WeatherSummary = conditions.Description
	report.TemperatureAvg = conditions.Temperature
	report.PM25Avg = conditions.PM25
	report.PM25Status = pm25Status(conditions.PM25)

	return report, nil
}

// Dispatch builds, persists, and delivers the report for a date. Safe to
// re-invoke after a crash or duplicate scheduler fire.
func (d *Dispatcher) Dispatch(ctx context.Context, date time.Time) error {
	if !d.OperatingDay(date) {
		fmt.Printf("[DailyReport] %s is not an operating day, skipping\n", date.Format("2006-01-02"))
		return nil
	}

	report, err := d.BuildReport(ctx, date)
	if err != nil {
		return err
	}

	if err := d.store.UpsertDailyReport(report); err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}

	sent, err := d.store.IsReportSent(report.ReportDate)
	if err != nil {
		return fmt.Errorf("failed to check delivery status: %w", err)
	}
	if sent {
		fmt.Printf("[DailyReport] Report for %s already delivered, skipping\n",
			report.ReportDate.Format("2006-01-02"))
		return nil
	}

	message := FormatDailyReport(report)

	// A pending row first, so an attempt that dies mid-broadcast still
	// shows up in the log
	d.logDelivery(report.ReportDate, database.DeliveryTypeDailyReport, message,
		database.DeliveryStatusPending, nil)

	if err := d.broadcaster.Broadcast(ctx, message); err != nil {
		d.logDelivery(report.ReportDate, database.DeliveryTypeDailyReport, message,
			database.DeliveryStatusFailed, err)
		metrics.ReportsDelivered.WithLabelValues(database.DeliveryStatusFailed).Inc()
		return fmt.Errorf("failed to deliver report: %w", err)
	}

	sentAt := d.now()
	if err := d.store.MarkReportSent(report.ReportDate, sentAt); err != nil {
		// Delivery happened; losing the flag risks a duplicate next run,
		// so this failure is loud
		return fmt.Errorf("failed to mark report sent: %w", err)
	}

	d.logDelivery(report.ReportDate, database.DeliveryTypeDailyReport, message,
		database.DeliveryStatusSent, nil)
	metrics.ReportsDelivered.WithLabelValues(database.DeliveryStatusSent).Inc()

	fmt.Printf("[DailyReport] Report for %s delivered\n", report.ReportDate.Format("2006-01-02"))
	return nil
}

func (d *Dispatcher) logDelivery(date time.Time, messageType, payload, status string, cause error) {
	entry := &database.DeliveryLogEntry{
		ReportDate:  date,
		MessageType: messageType,
		Payload:     payload,
		Status:      status,
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}

	if err := d.store.AppendDeliveryLog(entry); err != nil {
		fmt.Printf("[DailyReport] Failed to append delivery log: %v\n", err)
	}
}

func pm25Status(pm25 *float64) string {
	if pm25 == nil {
		return "no data"
	}
	switch {
	case *pm25 <= 25:
		return "good"
	case *pm25 <= 50:
		return "moderate"
	default:
		return "hazardous"
	}
}
