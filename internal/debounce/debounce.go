// Package debounce provides a cancel-and-restart timer handle.
package debounce

import (
	"sync"
	"time"
)

// Timer runs fn once the delay has elapsed since the last Trigger. Fires are
// handed to dispatch, which lets the owner run fn on its own goroutine; a fire
// superseded by a later Trigger, Cancel or Flush is dropped.
type Timer struct {
	mu       sync.Mutex
	delay    time.Duration
	fn       func()
	dispatch func(func())
	t        *time.Timer
	gen      uint64
	pending  bool
	stopped  bool
}

// New returns a Timer. A nil dispatch runs fn on the timer goroutine.
func New(delay time.Duration, fn func(), dispatch func(func())) *Timer {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Timer{delay: delay, fn: fn, dispatch: dispatch}
}

// Trigger (re)starts the countdown.
func (d *Timer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.t != nil {
		d.t.Stop()
	}
	d.gen++
	d.pending = true
	gen := d.gen
	d.t = time.AfterFunc(d.delay, func() {
		d.dispatch(func() { d.fire(gen) })
	})
}

func (d *Timer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a fire is scheduled.
func (d *Timer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel drops the scheduled fire, if any.
func (d *Timer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Timer) cancelLocked() {
	if d.t != nil {
		d.t.Stop()
	}
	d.gen++
	d.pending = false
}

// Flush runs a scheduled fire immediately on the calling goroutine.
func (d *Timer) Flush() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	d.cancelLocked()
	d.mu.Unlock()
	d.fn()
}

// Stop cancels any scheduled fire and disables the timer for good.
func (d *Timer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}
