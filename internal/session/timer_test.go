package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *timeoutLog) record(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
}

func (l *timeoutLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

func TestTimerController_FiresOnce(t *testing.T) {
	log := &timeoutLog{}
	tc := NewTimerController(time.Minute, log.record)
	defer tc.Stop()

	tc.StartTimer("s1", 30*time.Millisecond)
	assert.True(t, tc.IsRunning("s1"))

	assert.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, tc.IsRunning("s1"), "fired timers are cleared")
	assert.Equal(t, time.Duration(0), tc.GetRemainingTime("s1"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, log.count())
}

func TestTimerController_RestartReplaces(t *testing.T) {
	log := &timeoutLog{}
	tc := NewTimerController(time.Minute, log.record)
	defer tc.Stop()

	tc.StartTimer("s1", 40*time.Millisecond)
	tc.StartTimer("s1", time.Minute)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, log.count(), "the replaced timer must not fire")
	assert.True(t, tc.IsRunning("s1"))
}

func TestTimerController_PauseResume(t *testing.T) {
	log := &timeoutLog{}
	tc := NewTimerController(time.Minute, log.record)
	defer tc.Stop()

	tc.StartTimer("s1", 60*time.Millisecond)
	require.True(t, tc.PauseTimer("s1"))
	assert.False(t, tc.PauseTimer("s1"), "already paused")
	assert.True(t, tc.IsPaused("s1"))

	remaining := tc.GetRemainingTime("s1")
	assert.True(t, remaining > 0 && remaining <= 60*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, log.count(), "paused timers do not fire")
	assert.Equal(t, remaining, tc.GetRemainingTime("s1"), "remaining is frozen while paused")

	require.True(t, tc.ResumeTimer("s1"))
	assert.False(t, tc.ResumeTimer("s1"), "already running")
	assert.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTimerController_Clear(t *testing.T) {
	log := &timeoutLog{}
	tc := NewTimerController(time.Minute, log.record)
	defer tc.Stop()

	tc.StartTimer("s1", 30*time.Millisecond)
	assert.True(t, tc.ClearTimer("s1"))
	assert.False(t, tc.ClearTimer("s1"))
	assert.False(t, tc.PauseTimer("s1"))
	assert.False(t, tc.ResumeTimer("s1"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, log.count())
}

func TestTimerController_DefaultDuration(t *testing.T) {
	tc := NewTimerController(time.Minute, nil)
	defer tc.Stop()

	tc.StartTimer("s1", 0)
	remaining := tc.GetRemainingTime("s1")
	assert.True(t, remaining > 59*time.Second && remaining <= time.Minute)
}
