package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// InsertSample appends a single occupancy sample
func (db *DB) InsertSample(sample *OccupancySample) error {
	query := `
		INSERT INTO occupancy_samples (zone_code, people_count, recorded_at, source, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return db.QueryRow(
		query,
		sample.ZoneCode,
		sample.Count,
		sample.RecordedAt,
		sample.Source,
		sample.ReceivedAt,
	).Scan(&sample.ID)
}

// InsertSamples appends a batch of samples in a single transaction so the
// batch lands atomically and write latency stays bounded.
func (db *DB) InsertSamples(samples []*OccupancySample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO occupancy_samples (zone_code, people_count, recorded_at, source, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.Exec(
			sample.ZoneCode,
			sample.Count,
			sample.RecordedAt,
			sample.Source,
			sample.ReceivedAt,
		); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// LatestSample returns the most recent sample, or nil if none exist.
// Used to seed the current-state tracker after a restart.
func (db *DB) LatestSample() (*OccupancySample, error) {
	query := `
		SELECT id, zone_code, people_count, recorded_at, source, received_at
		FROM occupancy_samples
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	var s OccupancySample
	err := db.QueryRow(query).Scan(
		&s.ID,
		&s.ZoneCode,
		&s.Count,
		&s.RecordedAt,
		&s.Source,
		&s.ReceivedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// SamplesBetween returns samples with recorded_at in [from, to], oldest first
func (db *DB) SamplesBetween(from, to time.Time) ([]*OccupancySample, error) {
	query := `
		SELECT id, zone_code, people_count, recorded_at, source, received_at
		FROM occupancy_samples
		WHERE recorded_at >= $1 AND recorded_at <= $2
		ORDER BY recorded_at ASC
	`

	rows, err := db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*OccupancySample
	for rows.Next() {
		var s OccupancySample
		if err := rows.Scan(
			&s.ID,
			&s.ZoneCode,
			&s.Count,
			&s.RecordedAt,
			&s.Source,
			&s.ReceivedAt,
		); err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}

	return samples, rows.Err()
}

// PruneSamples deletes samples older than the retention window
func (db *DB) PruneSamples(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := db.Exec(`DELETE FROM occupancy_samples WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}

	return result.RowsAffected()
}

// UpsertDailyReport inserts or replaces the report for its date. The unique
// key on report_date means a re-run updates the summary instead of
// duplicating it; the is_sent_line flag is preserved on conflict.
func (db *DB) UpsertDailyReport(report *DailyReport) error {
	zoneTotals, err := json.Marshal(report.PerZoneTotals)
	if err != nil {
		return fmt.Errorf("failed to marshal zone totals: %w", err)
	}
	zonePeaks, err := json.Marshal(report.PerZonePeaks)
	if err != nil {
		return fmt.Errorf("failed to marshal zone peaks: %w", err)
	}

	query := `
		INSERT INTO daily_reports (
			report_date, max_people, avg_people, min_people, total_samples,
			zone_totals, zone_peaks, weather_summary, temperature_avg,
			pm25_avg, pm25_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (report_date) DO UPDATE
		SET max_people = EXCLUDED.max_people,
		    avg_people = EXCLUDED.avg_people,
		    min_people = EXCLUDED.min_people,
		    total_samples = EXCLUDED.total_samples,
		    zone_totals = EXCLUDED.zone_totals,
		    zone_peaks = EXCLUDED.zone_peaks,
		    weather_summary = EXCLUDED.weather_summary,
		    temperature_avg = EXCLUDED.temperature_avg,
		    pm25_avg = EXCLUDED.pm25_avg,
		    pm25_status = EXCLUDED.pm25_status
		RETURNING id
	`

	return db.QueryRow(
		query,
		report.ReportDate,
		report.MaxPeople,
		report.AvgPeople,
		report.MinPeople,
		report.TotalSamples,
		string(zoneTotals),
		string(zonePeaks),
		report.WeatherSummary,
		report.TemperatureAvg,
		report.PM25Avg,
		report.PM25Status,
	).Scan(&report.ID)
}

// GetDailyReport retrieves the report for a date, or nil if none exists
func (db *DB) GetDailyReport(date time.Time) (*DailyReport, error) {
	query := `
		SELECT id, report_date, max_people, avg_people, min_people, total_samples,
		       zone_totals, zone_peaks, weather_summary, temperature_avg,
		       pm25_avg, pm25_status, is_sent_line, sent_at, created_at
		FROM daily_reports
		WHERE report_date = $1
	`

	report, err := scanDailyReport(db.QueryRow(query, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return report, nil
}

// GetDailyReports retrieves the most recent reports, newest first
func (db *DB) GetDailyReports(limit int) ([]*DailyReport, error) {
	query := `
		SELECT id, report_date, max_people, avg_people, min_people, total_samples,
		       zone_totals, zone_peaks, weather_summary, temperature_avg,
		       pm25_avg, pm25_status, is_sent_line, sent_at, created_at
		FROM daily_reports
		ORDER BY report_date DESC
		LIMIT $1
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*DailyReport
	for rows.Next() {
		report, err := scanDailyReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// IsReportSent reports whether the date's report was already delivered
func (db *DB) IsReportSent(date time.Time) (bool, error) {
	var sent bool
	err := db.QueryRow(
		`SELECT is_sent_line FROM daily_reports WHERE report_date = $1`, date,
	).Scan(&sent)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return sent, nil
}

// MarkReportSent flips the idempotency flag after a successful delivery
func (db *DB) MarkReportSent(date time.Time, sentAt time.Time) error {
	_, err := db.Exec(
		`UPDATE daily_reports SET is_sent_line = true, sent_at = $1 WHERE report_date = $2`,
		sentAt, date,
	)
	return err
}

// AppendDeliveryLog inserts a new delivery attempt row. Rows are never
// updated; each attempt gets its own entry.
func (db *DB) AppendDeliveryLog(entry *DeliveryLogEntry) error {
	query := `
		INSERT INTO delivery_log (report_date, message_type, payload, status, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return db.QueryRow(
		query,
		entry.ReportDate,
		entry.MessageType,
		entry.Payload,
		entry.Status,
		entry.ErrorMessage,
	).Scan(&entry.ID)
}

// DeliveryLogFor retrieves all delivery attempts for a date, oldest first
func (db *DB) DeliveryLogFor(date time.Time) ([]*DeliveryLogEntry, error) {
	query := `
		SELECT id, report_date, message_type, payload, status, error_message, created_at
		FROM delivery_log
		WHERE report_date = $1
		ORDER BY created_at ASC
	`

	rows, err := db.Query(query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*DeliveryLogEntry
	for rows.Next() {
		var e DeliveryLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.ReportDate,
			&e.MessageType,
			&e.Payload,
			&e.Status,
			&e.ErrorMessage,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDailyReport(row rowScanner) (*DailyReport, error) {
	var r DailyReport
	var zoneTotals, zonePeaks string

	if err := row.Scan(
		&r.ID,
		&r.ReportDate,
		&r.MaxPeople,
		&r.AvgPeople,
		&r.MinPeople,
		&r.TotalSamples,
		&zoneTotals,
		&zonePeaks,
		&r.WeatherSummary,
		&r.TemperatureAvg,
		&r.PM25Avg,
		&r.PM25Status,
		&r.IsSentLine,
		&r.SentAt,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(zoneTotals), &r.PerZoneTotals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone totals: %w", err)
	}
	if err := json.Unmarshal([]byte(zonePeaks), &r.PerZonePeaks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone peaks: %w", err)
	}

	return &r, nil
}
