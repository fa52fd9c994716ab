package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerCoalesces(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 1)
	d := New(30*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	}, nil)

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected 1 call, got %d", n)
	}
}

func TestCancel(t *testing.T) {
	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) }, nil)
	d.Trigger()
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("cancelled timer fired")
	}
	if d.Pending() {
		t.Fatal("cancelled timer still pending")
	}
}

func TestFlushRunsNowOnce(t *testing.T) {
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) }, nil)
	d.Flush()
	if calls.Load() != 0 {
		t.Fatal("flush without a pending fire must do nothing")
	}
	d.Trigger()
	d.Flush()
	d.Flush()
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestStopRefusesTriggers(t *testing.T) {
	var calls atomic.Int32
	d := New(10*time.Millisecond, func() { calls.Add(1) }, nil)
	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(40 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("stopped timer fired")
	}
}

func TestDispatchReceivesFire(t *testing.T) {
	queue := make(chan func(), 1)
	var calls atomic.Int32
	d := New(5*time.Millisecond, func() { calls.Add(1) }, func(f func()) { queue <- f })
	d.Trigger()

	var f func()
	select {
	case f = <-queue:
	case <-time.After(time.Second):
		t.Fatal("dispatch never called")
	}
	if calls.Load() != 0 {
		t.Fatal("fn must run only when the dispatched closure runs")
	}
	f()
	if calls.Load() != 1 {
		t.Fatal("dispatched closure did not run fn")
	}
}

func TestStaleDispatchedFireIsDropped(t *testing.T) {
	queue := make(chan func(), 2)
	var calls atomic.Int32
	d := New(5*time.Millisecond, func() { calls.Add(1) }, func(f func()) { queue <- f })
	d.Trigger()
	stale := <-queue
	d.Trigger()
	stale()
	if calls.Load() != 0 {
		t.Fatal("superseded fire ran")
	}
	(<-queue)()
	if calls.Load() != 1 {
		t.Fatal("current fire should run")
	}
}
