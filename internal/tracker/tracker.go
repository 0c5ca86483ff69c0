package tracker

import (
	"sync"
	"time"
)

// Source identifies where a reading came from
type Source string

const (
	SourceLive      Source = "live"
	SourcePoll      Source = "poll"
	SourceSynthetic Source = "synthetic"
)

// Display labels, ranked by trust. A stale reading is labelled stale
// regardless of its original source; the stored provenance is untouched.
const (
	LabelLive         = "live"
	LabelNearRealTime = "near-real-time"
	LabelSynthetic    = "synthetic"
	LabelStale        = "stale"
)

// Reading is a snapshot of the latest known occupancy. StaleSeconds and
// Stale are computed at read time against the tracker's threshold.
type Reading struct {
	Count        int
	Timestamp    time.Time
	Source       Source
	StaleSeconds float64
	Stale        bool
}

// Label returns the trust-ranked source label for display
func (r Reading) Label() string {
	if r.Stale {
		return LabelStale
	}
	switch r.Source {
	case SourceLive:
		return LabelLive
	case SourcePoll:
		return LabelNearRealTime
	case SourceSynthetic:
		return LabelSynthetic
	default:
		return LabelStale
	}
}

// Tracker holds the latest known reading. It is the only mutable state
// shared between the ingest path and the read paths, so every access goes
// through the mutex.
type Tracker struct {
	mu         sync.RWMutex
	count      int
	timestamp  time.Time
	source     Source
	hasReading bool
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a tracker with the given staleness threshold
func New(staleAfter time.Duration) *Tracker {
	return &Tracker{
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Update replaces the current reading atomically
func (t *Tracker) Update(count int, timestamp time.Time, source Source) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count = count
	t.timestamp = timestamp
	t.source = source
	t.hasReading = true
}

// Current returns the latest reading with staleness computed against now.
// The second return is false until the first update arrives; callers must
// treat that as stale.
func (t *Tracker) Current() (Reading, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.hasReading {
		return Reading{Stale: true}, false
	}

	staleFor := t.now().Sub(t.timestamp)
	return Reading{
		Count:        t.count,
		Timestamp:    t.timestamp,
		Source:       t.source,
		StaleSeconds: staleFor.Seconds(),
		Stale:        staleFor > t.staleAfter,
	}, true
}
