package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimer_AfterFunc_Order(t *testing.T) {
	timer := New()
	defer timer.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	record := func(i int) func() {
		return func() {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 4 {
				close(done)
			}
		}
	}

	timer.AfterFunc(40*time.Millisecond, record(3))
	timer.AfterFunc(10*time.Millisecond, record(1))
	timer.AfterFunc(0, record(0))
	timer.AfterFunc(20*time.Millisecond, record(2))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callbacks did not run in time")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("callback order = %v, want [0 1 2 3]", order)
		}
	}
}

func TestTimer_SameDueRunsInSchedulingOrder(t *testing.T) {
	timer := New()
	defer timer.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		timer.AfterFunc(-time.Second, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestEntry_Cancel(t *testing.T) {
	timer := New()
	defer timer.Stop()

	var fired atomic.Bool
	e := timer.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	if !e.Cancel() {
		t.Fatal("Cancel() = false for pending entry")
	}
	if e.Cancel() {
		t.Error("second Cancel() = true, want false")
	}
	if timer.Len() != 0 {
		t.Errorf("Len() = %d after cancel, want 0", timer.Len())
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("canceled callback fired")
	}
}

func TestEntry_CancelAfterFire(t *testing.T) {
	timer := New()
	defer timer.Stop()

	fired := make(chan struct{})
	e := timer.AfterFunc(0, func() { close(fired) })
	<-fired
	if e.Cancel() {
		t.Error("Cancel() after fire = true, want false")
	}
}

func TestTimer_OneCallbackAtATime(t *testing.T) {
	timer := New()
	defer timer.Stop()

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		timer.AfterFunc(0, func() {
			defer wg.Done()
			n := running.Add(1)
			if n > maxRunning.Load() {
				maxRunning.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()

	if maxRunning.Load() != 1 {
		t.Errorf("max concurrent callbacks = %d, want 1", maxRunning.Load())
	}
}

func TestTimer_Stop(t *testing.T) {
	timer := New()

	var fired atomic.Bool
	e := timer.AfterFunc(30*time.Millisecond, func() { fired.Store(true) })
	timer.Stop()
	timer.Stop()

	if e.Cancel() {
		t.Error("Cancel() after Stop() = true, want false")
	}
	late := timer.AfterFunc(0, func() { fired.Store(true) })
	if late.Cancel() {
		t.Error("entry scheduled after Stop() should already be canceled")
	}

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("callback fired after Stop()")
	}
}
