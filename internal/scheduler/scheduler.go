// Package scheduler provides a one-shot timer facility backed by a priority
// queue of wakeups ordered by the monotonic clock. A single worker services
// the queue, so at most one callback executes at a time.
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Timer runs callbacks after a delay on its single worker goroutine.
type Timer struct {
	mu      sync.Mutex
	queue   entryHeap
	seq     uint64
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Entry is a pending wakeup returned by AfterFunc.
type Entry struct {
	timer *Timer
	due   time.Time // carries a monotonic reading
	seq   uint64
	fn    func()
	index int // position in the heap, -1 once removed
}

// New creates a Timer and starts its worker.
func New() *Timer {
	t := &Timer{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run()
	return t
}

// AfterFunc schedules fn to run once after d. Negative delays run immediately.
// Callbacks due at the same instant run in scheduling order.
// On a stopped Timer the entry is returned already canceled.
func (t *Timer) AfterFunc(d time.Duration, fn func()) *Entry {
	if d < 0 {
		d = 0
	}
	t.mu.Lock()
	e := &Entry{timer: t, due: time.Now().Add(d), seq: t.seq, fn: fn, index: -1}
	t.seq++
	if t.stopped {
		t.mu.Unlock()
		return e
	}
	heap.Push(&t.queue, e)
	t.mu.Unlock()

	t.signal()
	return e
}

// Cancel removes the entry if it has not fired yet.
// It reports whether the entry was removed; canceling twice or after the
// callback started is a no-op returning false.
func (e *Entry) Cancel() bool {
	t := e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.index < 0 {
		return false
	}
	heap.Remove(&t.queue, e.index)
	t.signal()
	return true
}

// Len returns the number of pending entries.
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Stop terminates the worker and drops all pending entries. It waits for a
// running callback to return, so it must not be called from inside one.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		for _, e := range t.queue {
			e.index = -1
		}
		t.queue = nil
		t.mu.Unlock()

		close(t.stop)
		<-t.done
	})
}

func (t *Timer) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Timer) run() {
	defer close(t.done)

	for {
		t.mu.Lock()
		var wait <-chan time.Time
		var tm *time.Timer
		if len(t.queue) > 0 {
			next := t.queue[0]
			d := time.Until(next.due)
			if d <= 0 {
				heap.Pop(&t.queue)
				t.mu.Unlock()
				next.fn()
				continue
			}
			tm = time.NewTimer(d)
			wait = tm.C
		}
		t.mu.Unlock()

		select {
		case <-t.stop:
			if tm != nil {
				tm.Stop()
			}
			return
		case <-t.wake:
		case <-wait:
		}
		if tm != nil {
			tm.Stop()
		}
	}
}

// entryHeap orders entries by due time, then by scheduling order.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
