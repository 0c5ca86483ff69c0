// Package httpapi wires the read and ingest surface consumed by the
// dashboard and the counting agent.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadkongta/crowd-insight/internal/aggregation"
	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/ingest"
	"github.com/kadkongta/crowd-insight/internal/tracker"
)

// ReportReader is the stored-report surface the API exposes
type ReportReader interface {
	GetDailyReport(date time.Time) (*database.DailyReport, error)
	GetDailyReports(limit int) ([]*database.DailyReport, error)
}

// Server holds the API dependencies
type Server struct {
	gateway *ingest.Gateway
	tracker *tracker.Tracker
	rollups *aggregation.Engine
	reports ReportReader
}

// NewServer creates the API server
func NewServer(gateway *ingest.Gateway, trk *tracker.Tracker, rollups *aggregation.Engine, reports ReportReader) *Server {
	return &Server{
		gateway: gateway,
		tracker: trk,
		rollups: rollups,
		reports: reports,
	}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/people/ingest", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/api/people/current", s.handleCurrent).Methods(http.MethodGet)
	r.HandleFunc("/api/people/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/people/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/people/hourly", s.handleHourly).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/daily", s.handleDailyReport).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/weekly", s.handleWeeklyReport).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type ingestRequest struct {
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
	Zone      string `json:"zone"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var recordedAt time.Time
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
			return
		}
		recordedAt = ts
	}

	reading, err := s.gateway.Ingest(r.Context(), req.Count, recordedAt, req.Zone)
	if err != nil {
		if errors.Is(err, ingest.ErrNegativeCount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, currentView(reading))
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.tracker.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":  0,
			"source": tracker.LabelStale,
			"stale":  true,
		})
		return
	}

	writeJSON(w, http.StatusOK, currentView(reading))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.rollups.DailySummary(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	history, err := s.rollups.HistoricalSummary(days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hourly, err := s.rollups.HourlySummary(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, hourly)
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.reports.GetDailyReport(time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "no report for date")
		return
	}

	writeJSON(w, http.StatusOK, reportView(report))
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	rollup, err := s.rollups.WeeklyRollup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rollup)
}

func currentView(reading tracker.Reading) map[string]interface{} {
	return map[string]interface{}{
		"count":         reading.Count,
		"timestamp":     reading.Timestamp.UTC().Format(time.RFC3339),
		"source":        reading.Label(),
		"stale_seconds": int(reading.StaleSeconds),
		"stale":         reading.Stale,
	}
}

func reportView(report *database.DailyReport) map[string]interface{} {
	return map[string]interface{}{
		"report_date":     report.ReportDate.Format("2006-01-02"),
		"max_people":      report.MaxPeople,
		"avg_people":      report.AvgPeople,
		"min_people":      report.MinPeople,
		"total_samples":   report.TotalSamples,
		"zone_totals":     report.PerZoneTotals,
		"zone_peaks":      report.PerZonePeaks,
		"weather_summary": report.WeatherSummary,
		"temperature_avg": report.TemperatureAvg,
		"pm25_avg":        report.PM25Avg,
		"pm25_status":     report.PM25Status,
		"is_sent":         report.IsSentLine,
		"sent_at":         report.SentAt,
	}
}

func dateParam(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Now(), nil
	}

	date, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be formatted YYYY-MM-DD", key)
	}
	return date, nil
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}
