package timer

import (
	"sync"
	"testing"
	"time"
)

func TestTimerManager_Schedule(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	executed := false
	var mu sync.Mutex

	err := tm.Schedule("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if !executed {
		t.Error("Task was not executed")
	}
	mu.Unlock()
}

func TestTimerManager_Cancel(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	executed := false
	var mu sync.Mutex

	err := tm.Schedule("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	cancelled := tm.Cancel("test1")
	if !cancelled {
		t.Error("Cancel returned false")
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if executed {
		t.Error("Cancelled task was executed")
	}
	mu.Unlock()
}

func TestTimerManager_ScheduleReplacesByID(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	var mu sync.Mutex
	firstRan := false
	secondRan := false

	if err := tm.Schedule("job", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		firstRan = true
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if err := tm.Schedule("job", time.Now().Add(150*time.Millisecond), func() {
		mu.Lock()
		secondRan = true
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if stats := tm.Stats(); stats.ScheduledTasks != 1 {
		t.Errorf("Expected 1 scheduled task, got %d", stats.ScheduledTasks)
	}

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if firstRan {
		t.Error("Replaced task still ran")
	}
	if !secondRan {
		t.Error("Replacement task did not run")
	}
}

func TestTimerManager_Ordering(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	var mu sync.Mutex
	var order []string

	record := func(id string) func() {
		return func() {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}
	}

	// Schedule out of order
	tm.Schedule("third", time.Now().Add(150*time.Millisecond), record("third"))
	tm.Schedule("first", time.Now().Add(50*time.Millisecond), record("first"))
	tm.Schedule("second", time.Now().Add(100*time.Millisecond), record("second"))

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("Expected 3 executions, got %d", len(order))
	}
	for i, want := range []string{"first", "second", "third"} {
		if order[i] != want {
			t.Errorf("Execution %d: expected %s, got %s", i, want, order[i])
		}
	}
}

func TestTimerManager_ScheduleAfterStop(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	tm.Stop()

	err := tm.Schedule("late", time.Now().Add(time.Millisecond), func() {})
	if err != ErrManagerStopped {
		t.Errorf("Expected ErrManagerStopped, got %v", err)
	}
}
