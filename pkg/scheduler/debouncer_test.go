package scheduler

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidSchedules(t *testing.T) {
	d := NewDebouncer()
	var calls int32
	var last atomic.Value

	for i := 0; i < 5; i++ {
		v := i
		d.Schedule("s1:p1", 30*time.Millisecond, func() {
			atomic.AddInt32(&calls, 1)
			last.Store(v)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if got := last.Load().(int); got != 4 {
		t.Errorf("last value = %d, want 4", got)
	}
	if d.Pending("s1:p1") {
		t.Error("key still pending after fire")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer()
	var calls int32

	d.Schedule("k", 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if !d.Cancel("k") {
		t.Fatal("Cancel() = false, want true")
	}
	if d.Cancel("k") {
		t.Error("second Cancel() = true, want false")
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

func TestDebouncer_CancelFunc(t *testing.T) {
	d := NewDebouncer()
	var calls int32
	inc := func() { atomic.AddInt32(&calls, 1) }

	d.Schedule("s1:a", 20*time.Millisecond, inc)
	d.Schedule("s1:b", 20*time.Millisecond, inc)
	d.Schedule("s2:a", 20*time.Millisecond, inc)

	n := d.CancelFunc(func(key string) bool { return strings.HasPrefix(key, "s1:") })
	if n != 2 {
		t.Fatalf("CancelFunc() = %d, want 2", n)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}

	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
