package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kadkongta/crowd-insight/internal/tracker"
)

type memStateStore struct {
	state *State
}

func (m *memStateStore) Get(ctx context.Context) (*State, error) {
	if m.state == nil {
		return &State{Level: Normal}, nil
	}
	return m.state, nil
}

func (m *memStateStore) Set(ctx context.Context, state *State) error {
	m.state = state
	return nil
}

type fakeNotifier struct {
	messages []string
	failures int
}

func (f *fakeNotifier) Broadcast(ctx context.Context, text string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("channel unavailable")
	}
	f.messages = append(f.messages, text)
	return nil
}

// newTestEngine leaves the worker stopped so tests can adjust the engine
// before calling Start; Stop drains the queue before assertions.
func newTestEngine(notifier Notifier) (*Engine, *memStateStore) {
	store := &memStateStore{}
	engine := NewEngine(store, notifier, DefaultThresholds())
	engine.sleep = func(time.Duration) {}
	return engine, store
}

func liveReading(count int) tracker.Reading {
	return tracker.Reading{
		Count:     count,
		Timestamp: time.Now(),
		Source:    tracker.SourceLive,
	}
}

func TestLevelFor(t *testing.T) {
	thresholds := DefaultThresholds()

	tests := []struct {
		count int
		want  Level
	}{
		{0, Normal},
		{50, Normal},
		{99, Normal},
		{100, Advisory},
		{299, Advisory},
		{300, Warning},
		{599, Warning},
		{600, Critical},
		{5000, Critical},
	}

	for _, tt := range tests {
		if got := thresholds.LevelFor(tt.count); got != tt.want {
			t.Errorf("LevelFor(%d) = %s, want %s", tt.count, got, tt.want)
		}
	}
}

func TestEvaluate_OneNotificationPerStateEntry(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, store := newTestEngine(notifier)
	engine.Start()
	ctx := context.Background()

	for _, count := range []int{350, 340, 360} {
		if err := engine.Evaluate(ctx, liveReading(count)); err != nil {
			t.Fatalf("Evaluate(%d) failed: %v", count, err)
		}
	}
	engine.Stop()

	if len(notifier.messages) != 1 {
		t.Errorf("Expected exactly 1 notification, got %d", len(notifier.messages))
	}
	if store.state.Level != Warning {
		t.Errorf("Expected state WARNING, got %s", store.state.Level)
	}
}

func TestEvaluate_ReentryAfterLeavingNotifiesAgain(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, _ := newTestEngine(notifier)
	engine.Start()
	ctx := context.Background()

	engine.Evaluate(ctx, liveReading(650)) // Critical, notifies
	engine.Evaluate(ctx, liveReading(650)) // still Critical, silent
	engine.Evaluate(ctx, liveReading(200)) // de-escalates silently
	engine.Evaluate(ctx, liveReading(700)) // re-enters Critical, notifies
	engine.Stop()

	if len(notifier.messages) != 2 {
		t.Errorf("Expected 2 notifications, got %d", len(notifier.messages))
	}
}

func TestEvaluate_StaleReadingFreezesTransitions(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, store := newTestEngine(notifier)
	engine.Start()

	stale := liveReading(700)
	stale.Stale = true

	if err := engine.Evaluate(context.Background(), stale); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	engine.Stop()

	if store.state != nil {
		t.Errorf("Stale reading transitioned state to %s", store.state.Level)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("Stale reading produced %d notifications", len(notifier.messages))
	}
}

func TestEvaluate_SyntheticNeverNotifiesCritical(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, store := newTestEngine(notifier)
	engine.Start()

	synthetic := liveReading(650)
	synthetic.Source = tracker.SourceSynthetic

	if err := engine.Evaluate(context.Background(), synthetic); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	engine.Stop()

	// The transition is recorded, only the outward notification is gated
	if store.state.Level != Critical {
		t.Errorf("Expected state CRITICAL, got %s", store.state.Level)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("Synthetic reading produced %d Critical notifications", len(notifier.messages))
	}
}

func TestEvaluate_LiveCriticalNotifiesExactlyOnce(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, _ := newTestEngine(notifier)
	engine.Start()
	ctx := context.Background()

	engine.Evaluate(ctx, liveReading(650))
	engine.Evaluate(ctx, liveReading(800))
	engine.Evaluate(ctx, liveReading(620))
	engine.Stop()

	if len(notifier.messages) != 1 {
		t.Errorf("Expected exactly 1 notification while in CRITICAL, got %d", len(notifier.messages))
	}
}

func TestEvaluate_DeescalationSilentByDefault(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, store := newTestEngine(notifier)
	engine.Start()
	ctx := context.Background()

	engine.Evaluate(ctx, liveReading(650))
	engine.Evaluate(ctx, liveReading(350))
	engine.Stop()

	if store.state.Level != Warning {
		t.Errorf("Expected state WARNING, got %s", store.state.Level)
	}
	// Only the escalation into Critical notified
	if len(notifier.messages) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(notifier.messages))
	}
}

func TestEvaluate_DeescalationNotifiesWhenEnabled(t *testing.T) {
	notifier := &fakeNotifier{}
	engine, _ := newTestEngine(notifier)
	engine.SetNotifyDeescalation(true)
	engine.Start()
	ctx := context.Background()

	engine.Evaluate(ctx, liveReading(650))
	engine.Evaluate(ctx, liveReading(350))
	engine.Stop()

	// Escalation plus de-escalation
	if len(notifier.messages) != 2 {
		t.Errorf("Expected 2 notifications, got %d", len(notifier.messages))
	}
}

func TestEvaluate_DeliveryRetriesThenSucceeds(t *testing.T) {
	notifier := &fakeNotifier{failures: 2}
	engine, _ := newTestEngine(notifier)
	engine.Start()

	engine.Evaluate(context.Background(), liveReading(650))
	engine.Stop()

	if len(notifier.messages) != 1 {
		t.Errorf("Expected delivery on third attempt, got %d messages", len(notifier.messages))
	}
}

func TestEvaluate_DeliveryFailureKeepsTransition(t *testing.T) {
	notifier := &fakeNotifier{failures: 10}
	engine, store := newTestEngine(notifier)

	slept := 0
	engine.sleep = func(time.Duration) { slept++ }
	engine.Start()

	if err := engine.Evaluate(context.Background(), liveReading(650)); err != nil {
		t.Fatalf("Evaluate returned error after delivery failure: %v", err)
	}
	engine.Stop()

	// 3 attempts means 2 backoff sleeps
	if slept != 2 {
		t.Errorf("Expected 2 backoff sleeps, got %d", slept)
	}
	if store.state.Level != Critical {
		t.Errorf("Failed delivery rolled back state to %s", store.state.Level)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("Expected no delivered messages, got %d", len(notifier.messages))
	}
}

func TestEvaluate_ReturnsBeforeDelivery(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	engine, store := newTestEngine(blockingNotifier{started: started, release: release})
	engine.Start()

	done := make(chan error, 1)
	go func() {
		done <- engine.Evaluate(context.Background(), liveReading(650))
	}()

	// Evaluate must come back while the broadcast is still in flight
	<-started
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Evaluate blocked on notification delivery")
	}

	if store.state.Level != Critical {
		t.Errorf("Expected state CRITICAL before delivery finished, got %s", store.state.Level)
	}

	close(release)
	engine.Stop()
}

type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingNotifier) Broadcast(ctx context.Context, text string) error {
	close(b.started)
	<-b.release
	return nil
}
