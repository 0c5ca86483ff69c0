package ingest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kadkongta/crowd-insight/internal/tracker"
)

// Synthetic produces a time-of-day-shaped random count so the downstream
// pipeline stays exercisable without a live feed. Its samples carry
// synthetic provenance and are excluded from Critical alerting.
type Synthetic struct {
	gateway  *Gateway
	capacity int
	interval time.Duration
	rng      *rand.Rand
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSynthetic creates a synthetic generator for the given venue capacity
func NewSynthetic(gateway *Gateway, capacity int, interval time.Duration) *Synthetic {
	return &Synthetic{
		gateway:  gateway,
		capacity: capacity,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:   make(chan struct{}),
	}
}

// Start begins emitting synthetic samples
func (s *Synthetic) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop stops the generator
func (s *Synthetic) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Synthetic) run() {
	defer s.wg.Done()

	s.emit()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.emit()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Synthetic) emit() {
	count := s.countFor(time.Now().Hour())
	_, _ = s.gateway.ingest(context.Background(), count, time.Time{}, "", tracker.SourceSynthetic)
}

// countFor shapes the count to the venue's day: quiet mornings, a shoulder
// through the afternoon, and an evening peak.
func (s *Synthetic) countFor(hour int) int {
	var multiplier float64

	switch {
	case hour >= 17 && hour <= 21:
		multiplier = 0.70 + s.rng.Float64()*0.25
	case hour >= 14 && hour < 17:
		multiplier = 0.40 + s.rng.Float64()*0.20
	case hour >= 10 && hour < 14:
		multiplier = 0.20 + s.rng.Float64()*0.20
	default:
		multiplier = 0.05 + s.rng.Float64()*0.15
	}

	return int(float64(s.capacity) * multiplier)
}
