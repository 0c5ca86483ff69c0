// Package timer schedules one-shot tasks on a min-heap. Recurring jobs
// reschedule themselves from their callback, so a slow callback delays only
// its own next run.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task is a callback scheduled for future execution
type Task struct {
	ID       string
	RunAt    time.Time
	Callback func()
	index    int // index in the heap
}

// taskHeap is a min-heap of Tasks ordered by RunAt
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].RunAt.Before(h[j].RunAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	n := len(*h)
	task := x.(*Task)
	task.index = n
	*h = append(*h, task)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[0 : n-1]
	return task
}

// TimerManager runs scheduled tasks. Scheduling the same ID again replaces
// the pending task.
type TimerManager struct {
	heap    taskHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	tasks   map[string]*Task
	stopped bool
	stopCh  chan struct{}
}

// NewTimerManager creates a timer manager
func NewTimerManager() *TimerManager {
	tm := &TimerManager{
		heap:   make(taskHeap, 0),
		wakeup: make(chan struct{}, 1),
		tasks:  make(map[string]*Task),
		stopCh: make(chan struct{}),
	}
	heap.Init(&tm.heap)
	return tm
}

// Start launches the scheduler loop
func (tm *TimerManager) Start() {
	go tm.run()
}

// Stop stops the timer manager. Pending tasks are discarded; tasks already
// launched run to completion.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return
	}
	tm.stopped = true
	close(tm.stopCh)
}

// Schedule adds a task to be executed at the specified time
func (tm *TimerManager) Schedule(id string, runAt time.Time, callback func()) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return ErrManagerStopped
	}

	// Replace an existing task with the same ID
	if existing, ok := tm.tasks[id]; ok {
		heap.Remove(&tm.heap, existing.index)
		delete(tm.tasks, id)
	}

	task := &Task{
		ID:       id,
		RunAt:    runAt,
		Callback: callback,
	}

	heap.Push(&tm.heap, task)
	tm.tasks[id] = task

	// Wake the scheduler if this became the earliest task
	if tm.heap[0] == task {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes a scheduled task
func (tm *TimerManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

// run is the scheduler loop
func (tm *TimerManager) run() {
	for {
		tm.mu.Lock()

		if tm.stopped {
			tm.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if tm.heap.Len() == 0 {
			// No tasks, park until something is scheduled
			waitDuration = 24 * time.Hour
		} else {
			nextTask := tm.heap[0]
			waitDuration = time.Until(nextTask.RunAt)

			if waitDuration <= 0 {
				task := heap.Pop(&tm.heap).(*Task)
				delete(tm.tasks, task.ID)

				go task.Callback()

				tm.mu.Unlock()
				continue
			}
		}

		tm.mu.Unlock()

		t := time.NewTimer(waitDuration)
		select {
		case <-t.C:
			// Time to check for due tasks
		case <-tm.wakeup:
			// An earlier task was scheduled
			t.Stop()
		case <-tm.stopCh:
			t.Stop()
			return
		}
	}
}

// Stats returns statistics about the timer manager
func (tm *TimerManager) Stats() TimerStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return TimerStats{ScheduledTasks: len(tm.tasks)}
}

// TimerStats contains statistics about the timer manager
type TimerStats struct {
	ScheduledTasks int
}

var ErrManagerStopped = &TimerError{"timer manager is stopped"}

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
