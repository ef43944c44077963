// Package session runs live debates: turn timers, connectivity tracking,
// message rules, the session state machine and result evaluation.
package session

import (
	"sync"
	"time"
)

type timerEntry struct {
	timer     *time.Timer
	remaining time.Duration
	startedAt time.Time
	paused    bool
	gen       uint64
}

// TimerController keeps one turn countdown per session. When a countdown runs
// out the timeout handler is called with the session id and the entry is cleared.
type TimerController struct {
	mu              sync.Mutex
	timers          map[string]*timerEntry
	gen             uint64
	defaultDuration time.Duration
	onTimeout       func(sessionID string)
	now             func() time.Time
}

func NewTimerController(defaultDuration time.Duration, onTimeout func(sessionID string)) *TimerController {
	return &TimerController{
		timers:          make(map[string]*timerEntry),
		defaultDuration: defaultDuration,
		onTimeout:       onTimeout,
		now:             time.Now,
	}
}

// StartTimer replaces any timer for the session. A non-positive d uses the default duration.
func (tc *TimerController) StartTimer(sessionID string, d time.Duration) {
	if d <= 0 {
		d = tc.defaultDuration
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.stopLocked(sessionID)
	tc.gen++
	entry := &timerEntry{remaining: d, startedAt: tc.now(), gen: tc.gen}
	entry.timer = tc.schedule(sessionID, entry.gen, d)
	tc.timers[sessionID] = entry
}

// PauseTimer freezes a running timer. It reports false when there is none running.
func (tc *TimerController) PauseTimer(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.timers[sessionID]
	if !ok || entry.paused {
		return false
	}
	entry.timer.Stop()
	entry.remaining = remainingAfter(entry.remaining, tc.now().Sub(entry.startedAt))
	entry.paused = true
	return true
}

// ResumeTimer restarts a paused timer with what was left. It reports false when there is none paused.
func (tc *TimerController) ResumeTimer(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.timers[sessionID]
	if !ok || !entry.paused {
		return false
	}
	tc.gen++
	entry.gen = tc.gen
	entry.startedAt = tc.now()
	entry.paused = false
	entry.timer = tc.schedule(sessionID, entry.gen, entry.remaining)
	return true
}

// ClearTimer stops and forgets the session timer.
func (tc *TimerController) ClearTimer(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.stopLocked(sessionID)
}

// GetRemainingTime is zero when no timer exists.
func (tc *TimerController) GetRemainingTime(sessionID string) time.Duration {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.timers[sessionID]
	if !ok {
		return 0
	}
	if entry.paused {
		return entry.remaining
	}
	return remainingAfter(entry.remaining, tc.now().Sub(entry.startedAt))
}

func (tc *TimerController) IsRunning(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	entry, ok := tc.timers[sessionID]
	return ok && !entry.paused
}

func (tc *TimerController) IsPaused(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	entry, ok := tc.timers[sessionID]
	return ok && entry.paused
}

// Stop clears every timer.
func (tc *TimerController) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for id := range tc.timers {
		tc.stopLocked(id)
	}
}

func (tc *TimerController) schedule(sessionID string, gen uint64, d time.Duration) *time.Timer {
	return time.AfterFunc(d, func() { tc.fire(sessionID, gen) })
}

func (tc *TimerController) fire(sessionID string, gen uint64) {
	tc.mu.Lock()
	entry, ok := tc.timers[sessionID]
	// Replaced, paused or cleared after this timer was armed.
	if !ok || entry.gen != gen || entry.paused {
		tc.mu.Unlock()
		return
	}
	delete(tc.timers, sessionID)
	handler := tc.onTimeout
	tc.mu.Unlock()

	if handler != nil {
		handler(sessionID)
	}
}

func (tc *TimerController) stopLocked(sessionID string) bool {
	entry, ok := tc.timers[sessionID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(tc.timers, sessionID)
	return true
}

func remainingAfter(remaining, elapsed time.Duration) time.Duration {
	if left := remaining - elapsed; left > 0 {
		return left
	}
	return 0
}
