package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kadkongta/crowd-insight/internal/metrics"
	"github.com/kadkongta/crowd-insight/internal/tracker"
)

// countResponse is the payload the external counting endpoint returns
type countResponse struct {
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// Poller is the pull-based fallback. It periodically asks the counting
// endpoint for the latest reading and funnels successes through the gateway
// with poll provenance. A failed or timed-out poll leaves the tracker
// untouched; the next tick is the retry.
type Poller struct {
	gateway  *Gateway
	url      string
	interval time.Duration
	client   *http.Client
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a poller against the counting endpoint
func NewPoller(gateway *Gateway, url string, interval, timeout time.Duration) *Poller {
	return &Poller{
		gateway:  gateway,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop stops the poller
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) run() {
	defer p.wg.Done()

	// First poll immediately so a fresh start is not blind for a full tick
	p.poll()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) poll() {
	req, err := http.NewRequest(http.MethodGet, p.url, nil)
	if err != nil {
		metrics.PollFailures.Inc()
		fmt.Printf("[Poller] Bad request: %v\n", err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.PollFailures.Inc()
		fmt.Printf("[Poller] Counting source unreachable: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.PollFailures.Inc()
		fmt.Printf("[Poller] Counting source returned %d\n", resp.StatusCode)
		return
	}

	var payload countResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.PollFailures.Inc()
		fmt.Printf("[Poller] Malformed response: %v\n", err)
		return
	}

	var recordedAt time.Time
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
			recordedAt = ts
		}
	}

	if _, err := p.gateway.ingest(context.Background(), payload.Count, recordedAt, "", tracker.SourcePoll); err != nil {
		metrics.PollFailures.Inc()
		fmt.Printf("[Poller] Rejected polled sample: %v\n", err)
	}
}
