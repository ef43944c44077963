// Package scheduler provides cancellable delayed tasks keyed by string.
package scheduler

import (
	"sync"
	"time"
)

// Debouncer runs at most one pending task per key. Scheduling a key that already
// has a pending task cancels the old task first.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*task
}

type task struct {
	timer *time.Timer
}

func NewDebouncer() *Debouncer {
	return &Debouncer{pending: make(map[string]*task)}
}

// Schedule cancels any pending task for key and runs fn after delay.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.pending[key]; ok {
		old.timer.Stop()
	}

	t := &task{}
	t.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		// A newer Schedule or Cancel replaced us after the timer fired.
		if d.pending[key] != t {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		fn()
	})
	d.pending[key] = t
}

// Cancel drops the pending task for key. It reports whether one was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.pending[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(d.pending, key)
	return true
}

// CancelFunc drops every pending task whose key satisfies match and returns how many were dropped.
func (d *Debouncer) CancelFunc(match func(key string) bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for key, t := range d.pending {
		if match(key) {
			t.timer.Stop()
			delete(d.pending, key)
			n++
		}
	}
	return n
}

func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending task.
func (d *Debouncer) Stop() {
	d.CancelFunc(func(string) bool { return true })
}
