package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
	"github.com/mroshb/debate_hub/pkg/scheduler"
)

// ConnectivityEvent is published on every connect or disconnect.
type ConnectivityEvent struct {
	SessionID     string
	ParticipantID string
	Connected     bool
	At            time.Time
}

// StatusWriter persists a connectivity record after the debounce window.
type StatusWriter interface {
	WriteStatus(ctx context.Context, sessionID, participantID string, status models.ParticipantStatus) error
}

// ParticipantTracker is the in-memory source of truth for who is connected.
type ParticipantTracker struct {
	mu       sync.RWMutex
	sessions map[string]map[string]models.ParticipantStatus

	subsMu sync.RWMutex
	subs   map[int]chan ConnectivityEvent
	nextID int

	writer    StatusWriter
	debouncer *scheduler.Debouncer
	debounce  time.Duration
	now       func() time.Time
}

func NewParticipantTracker(writer StatusWriter, debounce time.Duration) *ParticipantTracker {
	return &ParticipantTracker{
		sessions:  make(map[string]map[string]models.ParticipantStatus),
		subs:      make(map[int]chan ConnectivityEvent),
		writer:    writer,
		debouncer: scheduler.NewDebouncer(),
		debounce:  debounce,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (t *ParticipantTracker) AddParticipant(sessionID, participantID string, connected bool) error {
	if sessionID == "" || participantID == "" {
		return errors.New(errors.ErrCodeValidation, "session and participant ids are required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	participants, ok := t.sessions[sessionID]
	if !ok {
		participants = make(map[string]models.ParticipantStatus)
		t.sessions[sessionID] = participants
	}
	if _, exists := participants[participantID]; exists {
		return errors.Newf(errors.ErrCodeAlreadyExists, "participant %s already tracked in session %s", participantID, sessionID)
	}
	participants[participantID] = models.ParticipantStatus{IsConnected: connected, LastSeen: t.now()}
	return nil
}

// RemoveParticipant forgets one participant and drops its pending write.
func (t *ParticipantTracker) RemoveParticipant(sessionID, participantID string) {
	t.mu.Lock()
	if participants, ok := t.sessions[sessionID]; ok {
		delete(participants, participantID)
	}
	t.mu.Unlock()
	t.debouncer.Cancel(debounceKey(sessionID, participantID))
}

func (t *ParticipantTracker) MarkConnected(sessionID, participantID string) error {
	return t.mark(sessionID, participantID, true)
}

func (t *ParticipantTracker) MarkDisconnected(sessionID, participantID string) error {
	return t.mark(sessionID, participantID, false)
}

func (t *ParticipantTracker) mark(sessionID, participantID string, connected bool) error {
	now := t.now()

	t.mu.Lock()
	participants, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
	}
	if _, ok := participants[participantID]; !ok {
		t.mu.Unlock()
		return errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
	}
	status := models.ParticipantStatus{IsConnected: connected, LastSeen: now}
	participants[participantID] = status
	t.mu.Unlock()

	t.scheduleWrite(sessionID, participantID, status)
	t.publish(ConnectivityEvent{SessionID: sessionID, ParticipantID: participantID, Connected: connected, At: now})
	return nil
}

func (t *ParticipantTracker) IsConnected(sessionID, participantID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.sessions[sessionID][participantID]
	return ok && status.IsConnected
}

func (t *ParticipantTracker) IsParticipantInSession(sessionID, participantID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[sessionID][participantID]
	return ok
}

func (t *ParticipantTracker) HasSession(sessionID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[sessionID]
	return ok
}

// GetSessionStatus returns a copy of the session's records.
func (t *ParticipantTracker) GetSessionStatus(sessionID string) map[string]models.ParticipantStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]models.ParticipantStatus, len(t.sessions[sessionID]))
	for id, status := range t.sessions[sessionID] {
		out[id] = status
	}
	return out
}

// AllConnected is false for sessions without records.
func (t *ParticipantTracker) AllConnected(sessionID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	participants := t.sessions[sessionID]
	if len(participants) == 0 {
		return false
	}
	for _, status := range participants {
		if !status.IsConnected {
			return false
		}
	}
	return true
}

// RemoveSession drops all records of the session and its pending writes.
func (t *ParticipantTracker) RemoveSession(sessionID string) {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
	t.CancelPending(sessionID)
}

// CancelPending drops pending writes without touching the records.
func (t *ParticipantTracker) CancelPending(sessionID string) int {
	prefix := sessionID + ":"
	return t.debouncer.CancelFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// Subscribe returns a channel receiving every connectivity event and a func to unsubscribe.
func (t *ParticipantTracker) Subscribe(buffer int) (<-chan ConnectivityEvent, func()) {
	ch := make(chan ConnectivityEvent, buffer)

	t.subsMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			// Keep a publisher blocked on a full buffer moving until the channel closes.
			go func() {
				for range ch {
				}
			}()
			t.subsMu.Lock()
			delete(t.subs, id)
			t.subsMu.Unlock()
			close(ch)
		})
	}
}

// Close stops pending writes.
func (t *ParticipantTracker) Close() {
	t.debouncer.Stop()
}

func (t *ParticipantTracker) publish(evt ConnectivityEvent) {
	t.subsMu.RLock()
	defer t.subsMu.RUnlock()
	for _, ch := range t.subs {
		ch <- evt
	}
}

func (t *ParticipantTracker) scheduleWrite(sessionID, participantID string, status models.ParticipantStatus) {
	if t.writer == nil {
		return
	}
	t.debouncer.Schedule(debounceKey(sessionID, participantID), t.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.writer.WriteStatus(ctx, sessionID, participantID, status); err != nil {
			logger.Error("Failed to persist connectivity",
				"session_id", sessionID,
				"participant_id", participantID,
				"error", err,
			)
		}
	})
}

func debounceKey(sessionID, participantID string) string {
	return sessionID + ":" + participantID
}
