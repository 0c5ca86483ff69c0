package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kadkongta/crowd-insight/internal/metrics"
	"github.com/kadkongta/crowd-insight/internal/tracker"
)

// Thresholds are the inclusive lower bounds of each band above Normal
type Thresholds struct {
	AdvisoryAt int
	WarningAt  int
	CriticalAt int
}

// DefaultThresholds returns the standard venue bands
func DefaultThresholds() Thresholds {
	return Thresholds{AdvisoryAt: 100, WarningAt: 300, CriticalAt: 600}
}

// LevelFor maps an occupancy count to its band
func (t Thresholds) LevelFor(count int) Level {
	switch {
	case count >= t.CriticalAt:
		return Critical
	case count >= t.WarningAt:
		return Warning
	case count >= t.AdvisoryAt:
		return Advisory
	default:
		return Normal
	}
}

// Notifier delivers an outward notification
type Notifier interface {
	Broadcast(ctx context.Context, text string) error
}

// Engine is the hysteresis state machine. It transitions on band changes,
// emits at most one notification per state entry, and freezes while the
// active reading is stale. Delivery runs on a background worker so a slow
// or retrying broadcast channel never blocks the ingest path.
type Engine struct {
	states             StateStore
	notifier           Notifier
	thresholds         Thresholds
	notifyDeescalation bool
	maxAttempts        int
	initialBackoff     time.Duration
	notifyCh           chan string
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	now                func() time.Time
	sleep              func(time.Duration)
}

// NewEngine creates an alert engine
func NewEngine(states StateStore, notifier Notifier, thresholds Thresholds) *Engine {
	return &Engine{
		states:         states,
		notifier:       notifier,
		thresholds:     thresholds,
		maxAttempts:    3,
		initialBackoff: time.Second,
		notifyCh:       make(chan string, 32),
		stopCh:         make(chan struct{}),
		now:            time.Now,
		sleep:          time.Sleep,
	}
}

// Start launches the background notification worker
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.notifyLoop()
}

// Stop drains pending notifications and stops the worker
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

// SetNotifyDeescalation enables outward notifications on downward
// transitions. Off by default: de-escalation updates state silently.
func (e *Engine) SetNotifyDeescalation(enabled bool) {
	e.notifyDeescalation = enabled
}

// SetRetryPolicy overrides the notification retry bounds
func (e *Engine) SetRetryPolicy(maxAttempts int, initialBackoff time.Duration) {
	e.maxAttempts = maxAttempts
	e.initialBackoff = initialBackoff
}

// Evaluate applies a new reading to the state machine.
//
// A stale reading never transitions and never notifies. A reading in the
// same band as the active state is a no-op, so re-entering a band without
// leaving it cannot re-notify. A failed delivery does not roll back the
// transition; state reflects reality even when the message was lost.
func (e *Engine) Evaluate(ctx context.Context, reading tracker.Reading) error {
	if reading.Stale {
		return nil
	}

	target := e.thresholds.LevelFor(reading.Count)

	state, err := e.states.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get alert state: %w", err)
	}

	if target == state.Level {
		return nil
	}

	escalation := target > state.Level

	newState := &State{
		Level:     target,
		EnteredAt: e.now(),
		Count:     reading.Count,
	}
	if err := e.states.Set(ctx, newState); err != nil {
		return fmt.Errorf("failed to set alert state: %w", err)
	}

	fmt.Printf("[Alert] %s -> %s (count=%d, source=%s)\n",
		state.Level, target, reading.Count, reading.Source)

	if !escalation && !e.notifyDeescalation {
		return nil
	}

	// Synthetic data must never escalate to a real-world Critical alert
	if target == Critical && reading.Source == tracker.SourceSynthetic {
		fmt.Printf("[Alert] Suppressing CRITICAL notification for synthetic reading\n")
		return nil
	}

	e.enqueue(formatAlertMessage(state.Level, target, reading))
	return nil
}

func (e *Engine) enqueue(message string) {
	select {
	case e.notifyCh <- message:
	default:
		// Never block a transition on a backed-up channel
		metrics.AlertNotificationsFailed.Inc()
		fmt.Printf("[Alert] Notification queue full, dropping message\n")
	}
}

func (e *Engine) notifyLoop() {
	defer e.wg.Done()

	for {
		select {
		case message := <-e.notifyCh:
			e.deliver(message)
		case <-e.stopCh:
			// Drain whatever is already queued
			for {
				select {
				case message := <-e.notifyCh:
					e.deliver(message)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) deliver(message string) {
	backoff := e.initialBackoff

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := e.notifier.Broadcast(context.Background(), message)
		if err == nil {
			metrics.AlertNotificationsSent.Inc()
			return
		}

		fmt.Printf("[Alert] Notification attempt %d/%d failed: %v\n",
			attempt, e.maxAttempts, err)

		if attempt < e.maxAttempts {
			e.sleep(backoff)
			backoff *= 2
		}
	}

	metrics.AlertNotificationsFailed.Inc()
	fmt.Printf("[Alert] Notification delivery abandoned after %d attempts\n", e.maxAttempts)
}

func formatAlertMessage(from, to Level, reading tracker.Reading) string {
	direction := "escalated"
	if to < from {
		direction = "eased"
	}

	return fmt.Sprintf(
		"Crowd level %s to %s\n\nCurrent occupancy: %d people\nRecorded at: %s\nSource: %s",
		direction,
		to,
		reading.Count,
		reading.Timestamp.Format("2006-01-02 15:04:05"),
		reading.Label(),
	)
}
