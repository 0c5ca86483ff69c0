package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kadkongta/crowd-insight/internal/aggregation"
	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/ingest"
	"github.com/kadkongta/crowd-insight/internal/tracker"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, key string, value []byte) error { return nil }

type nopEvaluator struct{}

func (nopEvaluator) Evaluate(ctx context.Context, reading tracker.Reading) error { return nil }

type stubReader struct {
	samples []*database.OccupancySample
}

func (s *stubReader) SamplesBetween(from, to time.Time) ([]*database.OccupancySample, error) {
	return s.samples, nil
}

type stubReports struct {
	report *database.DailyReport
}

func (s *stubReports) GetDailyReport(date time.Time) (*database.DailyReport, error) {
	return s.report, nil
}

func (s *stubReports) GetDailyReports(limit int) ([]*database.DailyReport, error) {
	if s.report == nil {
		return nil, nil
	}
	return []*database.DailyReport{s.report}, nil
}

func newTestServer(reports *stubReports) (*Server, *tracker.Tracker) {
	trk := tracker.New(10 * time.Minute)
	gateway := ingest.NewGateway(trk, nopEvaluator{}, nopPublisher{})
	rollups := aggregation.NewEngine(&stubReader{})
	if reports == nil {
		reports = &stubReports{}
	}
	return NewServer(gateway, trk, rollups, reports), trk
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, resp
}

func TestHandleIngest_AcceptsSample(t *testing.T) {
	srv, trk := newTestServer(nil)

	rec, resp := doRequest(t, srv, http.MethodPost, "/api/people/ingest",
		`{"count": 150, "zone": "zone-a"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Success {
		t.Errorf("Expected success response, got %+v", resp)
	}

	reading, ok := trk.Current()
	if !ok || reading.Count != 150 {
		t.Errorf("Tracker not updated: ok=%v reading=%+v", ok, reading)
	}
}

func TestHandleIngest_RejectsNegativeCount(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec, resp := doRequest(t, srv, http.MethodPost, "/api/people/ingest", `{"count": -3}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("Expected success=false for rejected sample")
	}
}

func TestHandleIngest_RejectsBadTimestamp(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec, _ := doRequest(t, srv, http.MethodPost, "/api/people/ingest",
		`{"count": 10, "timestamp": "yesterday"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestHandleCurrent_BeforeFirstSample(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/people/current", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	data := resp.Data.(map[string]interface{})
	if data["stale"] != true {
		t.Errorf("Expected stale=true before first sample, got %v", data)
	}
	if data["source"] != tracker.LabelStale {
		t.Errorf("Expected source %q, got %v", tracker.LabelStale, data["source"])
	}
}

func TestHandleCurrent_AfterIngest(t *testing.T) {
	srv, _ := newTestServer(nil)

	doRequest(t, srv, http.MethodPost, "/api/people/ingest", `{"count": 220}`)
	rec, resp := doRequest(t, srv, http.MethodGet, "/api/people/current", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	data := resp.Data.(map[string]interface{})
	if data["count"] != float64(220) {
		t.Errorf("Expected count 220, got %v", data["count"])
	}
	if data["source"] != tracker.LabelLive {
		t.Errorf("Expected source live, got %v", data["source"])
	}
	if data["stale"] != false {
		t.Errorf("Expected stale=false, got %v", data["stale"])
	}
}

func TestHandleSummary_BadDate(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/people/summary?date=10-01-2026", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestHandleHistory_RejectsBadDays(t *testing.T) {
	srv, _ := newTestServer(nil)

	for _, q := range []string{"days=0", "days=-2", "days=week"} {
		rec, _ := doRequest(t, srv, http.MethodGet, "/api/people/history?"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Query %q: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestHandleDailyReport_NotFound(t *testing.T) {
	srv, _ := newTestServer(&stubReports{})

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/reports/daily?date=2026-01-10", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestHandleDailyReport_Found(t *testing.T) {
	srv, _ := newTestServer(&stubReports{report: &database.DailyReport{
		ReportDate:   time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		MaxPeople:    480,
		AvgPeople:    210,
		MinPeople:    12,
		TotalSamples: 96,
		PM25Status:   "good",
		IsSentLine:   true,
	}})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/reports/daily?date=2026-01-10", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	data := resp.Data.(map[string]interface{})
	if data["report_date"] != "2026-01-10" {
		t.Errorf("Expected report_date 2026-01-10, got %v", data["report_date"])
	}
	if data["max_people"] != float64(480) {
		t.Errorf("Expected max_people 480, got %v", data["max_people"])
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec, resp := doRequest(t, srv, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !resp.Success {
		t.Errorf("Expected success response, got %+v", resp)
	}
}
