package session

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/debate_hub/internal/events"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
	"github.com/mroshb/debate_hub/pkg/scheduler"
)

// Realtime notification events
const (
	EventSessionCreated          = "session_created"
	EventSessionStarted          = "session_started"
	EventSessionPaused           = "session_paused"
	EventSessionResumed          = "session_resumed"
	EventSessionEnded            = "session_ended"
	EventSessionRemoved          = "session_removed"
	EventResultEvaluated         = "result_evaluated"
	EventMessageAdded            = "message_added"
	EventChatMessageAdded        = "chat_message_added"
	EventTurnChanged             = "turn_changed"
	EventTurnTimeout             = "turn_timeout"
	EventMicStatus               = "mic_status"
	EventParticipantAdded        = "participant_added"
	EventParticipantDisqualified = "participant_disqualified"
	EventRulesUpdated            = "rules_updated"
	EventScoreUpdated            = "score_updated"
)

// End reasons
const (
	EndReasonManual       = "manual"
	EndReasonPauseTimeout = "pause_timeout"
)

const (
	moderationContextSize = 5
	timeoutGrace          = 250 * time.Millisecond
	eventBuffer           = 256
)

// errNoop aborts an update without writing and without side effects.
var errNoop = stdErrors.New("no-op")

// Notification is pushed to realtime clients. An empty ParticipantID addresses the whole session.
type Notification struct {
	SessionID     string      `json:"sessionId"`
	ParticipantID string      `json:"participantId,omitempty"`
	Event         string      `json:"event"`
	Data          interface{} `json:"data,omitempty"`
}

type Notifier interface {
	Notify(n Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// MicStatus tells one participant whether their microphone is live.
type MicStatus struct {
	ParticipantID string `json:"participantId"`
	CanSpeak      bool   `json:"canSpeak"`
}

// Recorder is the durable side of sessions.
type Recorder interface {
	ResultRecorder
	CreateSession(ctx context.Context, session *models.DebateSession) error
	AddParticipant(ctx context.Context, sessionID string, p models.Participant) error
	UpdateSessionState(ctx context.Context, sessionID, state string, at time.Time) error
	AddMessage(ctx context.Context, sessionID string, msg models.DebateMessage) error
	SetParticipantDisqualified(ctx context.Context, sessionID, userID string) error
}

type Options struct {
	TurnDuration time.Duration
	PauseTimeout time.Duration
}

type CreateSessionRequest struct {
	SessionID    string
	Topic        string
	DebateType   string
	Mode         string
	DurationMins int
	Participants []models.Participant
	Rules        *models.Rules
}

type RulesPatch struct {
	TurnDurationSecs *int  `json:"turnDurationSecs"`
	AllowChat        *bool `json:"allowChat"`
	AllowVoice       *bool `json:"allowVoice"`
	RelaxedMode      *bool `json:"relaxedMode"`
}

type TimerStatus struct {
	RemainingMs int64 `json:"remainingMs"`
	Running     bool  `json:"running"`
	Paused      bool  `json:"paused"`
}

// Manager is the only writer of debate sessions. Every read-modify-write of a
// session runs under a per-session lock around an optimistic store update, and
// side effects run after the write commits, still under that lock.
type Manager struct {
	sessions  *store.SessionStore
	tracker   *ParticipantTracker
	timers    *TimerController
	rules     *RuleEngine
	evaluator *ResultEvaluator
	recorder  Recorder
	publisher events.Publisher
	notifier  Notifier
	autoEnd   *scheduler.Debouncer
	locks     *keyedMutex
	opts      Options
	now       func() time.Time
}

func NewManager(
	sessions *store.SessionStore,
	tracker *ParticipantTracker,
	recorder Recorder,
	publisher events.Publisher,
	notifier Notifier,
	opts Options,
) *Manager {
	if opts.TurnDuration <= 0 {
		opts.TurnDuration = 60 * time.Second
	}
	if opts.PauseTimeout <= 0 {
		opts.PauseTimeout = 3 * time.Minute
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	m := &Manager{
		sessions:  sessions,
		tracker:   tracker,
		rules:     NewRuleEngine(),
		evaluator: NewResultEvaluator(recorder),
		recorder:  recorder,
		publisher: publisher,
		notifier:  notifier,
		autoEnd:   scheduler.NewDebouncer(),
		locks:     newKeyedMutex(),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
	m.timers = NewTimerController(opts.TurnDuration, m.handleTurnTimeout)
	m.rules.now = func() time.Time { return m.now() }
	return m
}

// Close cancels all timers and pending writes of this instance.
func (m *Manager) Close() {
	m.timers.Stop()
	m.autoEnd.Stop()
	m.tracker.Close()
}

func (m *Manager) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.DebateSession, error) {
	if len(req.Participants) != 2 {
		return nil, errors.New(errors.ErrCodeValidation, "exactly two participants are required")
	}
	a, b := req.Participants[0], req.Participants[1]
	if a.ID == "" || b.ID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "participant id is required")
	}
	if a.ID == b.ID {
		return nil, errors.New(errors.ErrCodeValidation, "participants must be distinct")
	}
	if a.Role == "" {
		a.Role = models.RolePro
	}
	if b.Role == "" {
		b.Role = oppositeRole(a.Role)
	}
	if !isValidRole(a.Role) || !isValidRole(b.Role) || a.Role == b.Role {
		return nil, errors.New(errors.ErrCodeValidation, "participants need one pro and one con role")
	}

	debateType := req.DebateType
	if debateType == "" {
		debateType = models.DebateTypeProfessional
	}
	if !models.IsValidDebateType(debateType) {
		return nil, errors.New(errors.ErrCodeValidation, "debateType must be professional or unprofessional")
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeText
	}
	if !models.IsValidMode(mode) {
		return nil, errors.New(errors.ErrCodeValidation, "mode must be text, audio or video")
	}

	rules := m.defaultRules(debateType)
	if req.Rules != nil {
		rules = *req.Rules
		if rules.TurnDurationSecs <= 0 {
			rules.TurnDurationSecs = int(m.opts.TurnDuration / time.Second)
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for _, p := range []*models.Participant{&a, &b} {
		p.Score = 0
		p.ScoreOverridden = false
		p.Disqualified = false
	}
	first := a.ID
	session := &models.DebateSession{
		SessionID:    sessionID,
		Topic:        req.Topic,
		DebateType:   debateType,
		Mode:         mode,
		DurationMins: req.DurationMins,
		Participants: []models.Participant{a, b},
		State:        models.SessionStateWaiting,
		CurrentTurn:  &first,
		Rules:        rules,
		Messages:     []models.DebateMessage{},
		ChatMessages: []models.ChatMessage{},
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := m.recorder.CreateSession(ctx, session); err != nil {
		logger.Error("Failed to record session", "session_id", sessionID, "error", err)
	}
	for _, p := range session.Participants {
		if err := m.tracker.AddParticipant(sessionID, p.ID, p.IsConnected); err != nil {
			logger.Warn("Participant already tracked", "session_id", sessionID, "participant_id", p.ID)
		}
	}

	logger.Info("Debate session created",
		"session_id", sessionID,
		"pro", roleHolder(session, models.RolePro),
		"con", roleHolder(session, models.RoleCon),
	)
	m.notify(sessionID, EventSessionCreated, session)
	return session, nil
}

func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.DebateSession, error) {
	return m.sessions.Get(ctx, sessionID)
}

// StartSession moves waiting or paused sessions to ongoing. From paused it behaves as ResumeSession.
func (m *Manager) StartSession(ctx context.Context, sessionID string) (*models.DebateSession, error) {
	now := m.now()
	resumed := false
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		resumed = false
		switch s.State {
		case models.SessionStateWaiting:
			s.StartTime = &now
			s.TurnStartedAt = &now
			if s.CurrentTurn == nil {
				first := s.Participants[0].ID
				s.CurrentTurn = &first
			}
		case models.SessionStatePaused:
			foldPause(s, now)
			resumed = true
		default:
			return errors.Newf(errors.ErrCodeConflict, "session %s cannot be started from state %s", sessionID, s.State)
		}
		s.State = models.SessionStateOngoing
		return nil
	}, func(s *models.DebateSession) {
		if resumed {
			m.afterResume(ctx, s)
			return
		}
		m.timers.StartTimer(s.SessionID, m.turnDuration(s))
		m.persistState(ctx, s)
		m.publish(ctx, events.TopicDebateStarted, events.DebateStarted{
			SessionID:    s.SessionID,
			Participants: participantIDs(s),
			StartedAt:    *s.StartTime,
		})
		logger.Info("Debate session started", "session_id", s.SessionID)
		m.notify(s.SessionID, EventSessionStarted, s)
		m.notifyMicStatus(s)
	})
}

// PauseSession freezes the turn timer and arms the auto-end countdown.
func (m *Manager) PauseSession(ctx context.Context, sessionID string) (*models.DebateSession, error) {
	now := m.now()
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.State != models.SessionStateOngoing {
			return errors.Newf(errors.ErrCodeConflict, "can only pause ongoing sessions, current state: %s", s.State)
		}
		s.State = models.SessionStatePaused
		s.PausedAt = &now
		return nil
	}, func(s *models.DebateSession) {
		m.timers.PauseTimer(s.SessionID)
		m.scheduleAutoEnd(s.SessionID)
		m.persistState(ctx, s)
		logger.Info("Debate session paused", "session_id", s.SessionID)
		m.notify(s.SessionID, EventSessionPaused, s)
	})
}

func (m *Manager) ResumeSession(ctx context.Context, sessionID string) (*models.DebateSession, error) {
	now := m.now()
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.State != models.SessionStatePaused {
			return errors.Newf(errors.ErrCodeConflict, "session %s is not paused", sessionID)
		}
		foldPause(s, now)
		s.State = models.SessionStateOngoing
		return nil
	}, func(s *models.DebateSession) {
		m.afterResume(ctx, s)
	})
}

// AddMessage validates a turn message, appends it and hands the turn over.
// Rejected messages never move the turn.
func (m *Manager) AddMessage(ctx context.Context, sessionID string, msg models.DebateMessage) (*models.DebateSession, error) {
	if msg.SenderID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "senderId is required")
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeChat
	}
	if !isValidMessageType(msg.Type) {
		return nil, errors.New(errors.ErrCodeValidation, "type must be chat, voice or video")
	}

	now := m.now()
	msg.Timestamp = now
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if err := m.rules.ValidateMessage(s, &msg); err != nil {
			return err
		}
		s.Messages = append(s.Messages, msg)
		next := s.Opponent(msg.SenderID)
		s.CurrentTurn = &next
		s.TurnStartedAt = &now
		return nil
	}, func(s *models.DebateSession) {
		m.timers.StartTimer(s.SessionID, m.turnDuration(s))
		if err := m.recorder.AddMessage(ctx, s.SessionID, msg); err != nil {
			logger.Error("Failed to record message", "session_id", s.SessionID, "error", err)
		}
		m.notify(s.SessionID, EventMessageAdded, msg)
		m.notify(s.SessionID, EventTurnChanged, map[string]interface{}{"currentTurn": *s.CurrentTurn})
		m.notifyMicStatus(s)
		m.publish(ctx, events.TopicModerationRequest, events.ModerationRequest{
			SessionID: s.SessionID,
			Message:   msg,
			Context:   lastMessages(s.Messages, moderationContextSize),
		})
	})
}

// AddChatMessage appends to the side channel. It is never turn-gated.
func (m *Manager) AddChatMessage(ctx context.Context, sessionID string, msg models.ChatMessage) (*models.DebateSession, error) {
	if msg.SenderID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "senderId is required")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "message content cannot be empty")
	}

	msg.Timestamp = m.now()
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.IsEnded() {
			return errors.Newf(errors.ErrCodeConflict, "session %s already ended", sessionID)
		}
		if !s.HasParticipant(msg.SenderID) {
			return violation(ReasonNotParticipant, "Sender is not a participant in this debate.")
		}
		if !s.Rules.AllowChat {
			return violation(ReasonTypeDisabled, "Chat messages are not allowed in this debate.")
		}
		s.ChatMessages = append(s.ChatMessages, msg)
		return nil
	}, func(s *models.DebateSession) {
		m.notify(s.SessionID, EventChatMessageAdded, msg)
	})
}

// EndSession scores and closes the session. Ending twice is a conflict.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	return m.endSession(ctx, sessionID, EndReasonManual, false)
}

func (m *Manager) endSession(ctx context.Context, sessionID, reason string, onlyIfPaused bool) (*models.Evaluation, error) {
	now := m.now()
	var eval *models.Evaluation

	_, err := m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.IsEnded() {
			return errors.Newf(errors.ErrCodeConflict, "session %s already ended", sessionID)
		}
		if onlyIfPaused && s.State != models.SessionStatePaused {
			return errNoop
		}
		m.evaluator.UpdateScores(s)
		if s.PausedAt != nil {
			s.TotalPausedDuration += nonNegative(now.Sub(*s.PausedAt))
			s.PausedAt = nil
		}
		s.State = models.SessionStateEnded
		s.EndTime = &now
		return nil
	}, func(s *models.DebateSession) {
		m.autoEnd.Cancel(s.SessionID)
		m.timers.ClearTimer(s.SessionID)
		m.tracker.RemoveSession(s.SessionID)

		var evalErr error
		eval, evalErr = m.evaluator.EvaluateAndPersist(ctx, s)
		if evalErr != nil {
			logger.Error("Failed to persist debate result", "session_id", s.SessionID, "error", evalErr)
		}
		if eval == nil {
			return
		}

		m.publish(ctx, events.TopicDebateEnded, events.DebateEnded{
			SessionID:   s.SessionID,
			WinnerID:    eval.WinnerID,
			IsDraw:      eval.IsDraw,
			Scores:      eval.Scores,
			Summary:     eval.Summary,
			EndedAt:     now,
			ElapsedSecs: int64(s.ElapsedActive(now) / time.Second),
			Reason:      reason,
		})
		logger.Info("Debate session ended", "session_id", s.SessionID, "reason", reason, "summary", eval.Summary)
		m.notify(s.SessionID, EventSessionEnded, s)
		m.notify(s.SessionID, EventResultEvaluated, eval)
	})
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// RemoveSession drops the live snapshot and everything scheduled for it. Durable records stay.
func (m *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	deleted, err := m.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.Newf(errors.ErrCodeNotFound, "session %s not found", sessionID)
	}

	m.autoEnd.Cancel(sessionID)
	m.timers.ClearTimer(sessionID)
	m.tracker.RemoveSession(sessionID)

	logger.Info("Debate session removed", "session_id", sessionID)
	m.notify(sessionID, EventSessionRemoved, nil)
	return nil
}

// AddParticipant gives the seat with the same role to a new participant. Only
// allowed while waiting and while the current seat holder is not connected.
func (m *Manager) AddParticipant(ctx context.Context, sessionID string, p models.Participant) (*models.DebateSession, error) {
	if p.ID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "participant id is required")
	}
	if !isValidRole(p.Role) {
		return nil, errors.New(errors.ErrCodeValidation, "role must be pro or con")
	}

	replaced := ""
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.State != models.SessionStateWaiting {
			return errors.Newf(errors.ErrCodeConflict, "participants can only change before the debate starts, current state: %s", s.State)
		}
		if s.HasParticipant(p.ID) {
			return errors.Newf(errors.ErrCodeAlreadyExists, "participant %s already in session", p.ID)
		}

		seat := -1
		for i := range s.Participants {
			if s.Participants[i].Role == p.Role {
				seat = i
				break
			}
		}
		if seat < 0 {
			return errors.Newf(errors.ErrCodeConflict, "session has no %s seat", p.Role)
		}
		old := s.Participants[seat]
		if m.tracker.IsConnected(sessionID, old.ID) {
			return errors.Newf(errors.ErrCodeConflict, "seat is held by connected participant %s", old.ID)
		}

		replaced = old.ID
		s.Participants[seat] = models.Participant{ID: p.ID, Name: p.Name, Role: p.Role}
		if s.IsTurnOf(old.ID) {
			id := p.ID
			s.CurrentTurn = &id
		}
		return nil
	}, func(s *models.DebateSession) {
		m.tracker.RemoveParticipant(sessionID, replaced)
		if err := m.tracker.AddParticipant(sessionID, p.ID, false); err != nil {
			logger.Warn("Participant already tracked", "session_id", sessionID, "participant_id", p.ID)
		}
		if err := m.recorder.AddParticipant(ctx, sessionID, *s.Participant(p.ID)); err != nil {
			logger.Error("Failed to record participant", "session_id", sessionID, "error", err)
		}
		logger.Info("Participant seat reassigned", "session_id", sessionID, "old", replaced, "new", p.ID)
		m.notify(sessionID, EventParticipantAdded, s.Participant(p.ID))
	})
}

// GetParticipant overlays live connectivity from the tracker when this instance tracks it.
func (m *Manager) GetParticipant(ctx context.Context, sessionID, participantID string) (*models.Participant, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p := s.Participant(participantID)
	if p == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
	}
	out := *p
	if m.tracker.IsParticipantInSession(sessionID, participantID) {
		out.IsConnected = m.tracker.IsConnected(sessionID, participantID)
	}
	return &out, nil
}

// UpdateRules amends rules before the debate starts.
func (m *Manager) UpdateRules(ctx context.Context, sessionID string, patch RulesPatch) (*models.DebateSession, error) {
	if patch.TurnDurationSecs != nil && (*patch.TurnDurationSecs <= 0 || *patch.TurnDurationSecs > 3600) {
		return nil, errors.New(errors.ErrCodeValidation, "turnDurationSecs must be between 1 and 3600")
	}

	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.State != models.SessionStateWaiting {
			return errors.Newf(errors.ErrCodeConflict, "rules can only change before the debate starts, current state: %s", s.State)
		}
		if patch.TurnDurationSecs != nil {
			s.Rules.TurnDurationSecs = *patch.TurnDurationSecs
		}
		if patch.AllowChat != nil {
			s.Rules.AllowChat = *patch.AllowChat
		}
		if patch.AllowVoice != nil {
			s.Rules.AllowVoice = *patch.AllowVoice
		}
		if patch.RelaxedMode != nil {
			s.Rules.RelaxedMode = *patch.RelaxedMode
		}
		return nil
	}, func(s *models.DebateSession) {
		m.notify(s.SessionID, EventRulesUpdated, s.Rules)
	})
}

// ChangeTurn hands the turn to participantID and restarts the turn timer.
func (m *Manager) ChangeTurn(ctx context.Context, sessionID, participantID string) (*models.DebateSession, error) {
	now := m.now()
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.State != models.SessionStateOngoing {
			return errors.Newf(errors.ErrCodeConflict, "turn can only change while ongoing, current state: %s", s.State)
		}
		p := s.Participant(participantID)
		if p == nil {
			return errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
		}
		if p.Disqualified {
			return violation(ReasonDisqualified, "Participant is disqualified from this debate.")
		}
		id := p.ID
		s.CurrentTurn = &id
		s.TurnStartedAt = &now
		return nil
	}, func(s *models.DebateSession) {
		m.timers.StartTimer(s.SessionID, m.turnDuration(s))
		m.notify(s.SessionID, EventTurnChanged, map[string]interface{}{"currentTurn": *s.CurrentTurn})
		m.notifyMicStatus(s)
	})
}

func (m *Manager) DisqualifyParticipant(ctx context.Context, sessionID, participantID, reason string) (*models.DebateSession, error) {
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.IsEnded() {
			return errors.Newf(errors.ErrCodeConflict, "session %s already ended", sessionID)
		}
		p := s.Participant(participantID)
		if p == nil {
			return errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
		}
		if p.Disqualified {
			return errNoop
		}
		p.Disqualified = true
		return nil
	}, func(s *models.DebateSession) {
		if err := m.recorder.SetParticipantDisqualified(ctx, sessionID, participantID); err != nil {
			logger.Error("Failed to record disqualification", "session_id", sessionID, "error", err)
		}
		logger.Warn("Participant disqualified", "session_id", sessionID, "participant_id", participantID, "reason", reason)
		m.notify(sessionID, EventParticipantDisqualified, map[string]string{
			"participantId": participantID,
			"reason":        reason,
		})
		m.notifyMicStatus(s)
	})
}

// SetParticipantScore overrides the computed score for the final evaluation.
func (m *Manager) SetParticipantScore(ctx context.Context, sessionID, participantID string, score int) (*models.DebateSession, error) {
	if score < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "score cannot be negative")
	}
	return m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.IsEnded() {
			return errors.Newf(errors.ErrCodeConflict, "session %s already ended", sessionID)
		}
		p := s.Participant(participantID)
		if p == nil {
			return errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
		}
		p.Score = score
		p.ScoreOverridden = true
		return nil
	}, func(s *models.DebateSession) {
		m.notify(sessionID, EventScoreUpdated, map[string]interface{}{
			"participantId": participantID,
			"score":         score,
		})
	})
}

// ValidateParticipantTurn reports whether the participant may speak right now.
func (m *Manager) ValidateParticipantTurn(ctx context.Context, sessionID, participantID string) (bool, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !s.HasParticipant(participantID) {
		return false, errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
	}
	return m.rules.CanSpeak(s, participantID), nil
}

// GetTurnTimer reads the local timer, or derives it from the snapshot when
// another instance owns the countdown.
func (m *Manager) GetTurnTimer(ctx context.Context, sessionID string) (*TimerStatus, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if m.timers.IsRunning(sessionID) || m.timers.IsPaused(sessionID) {
		return &TimerStatus{
			RemainingMs: m.timers.GetRemainingTime(sessionID).Milliseconds(),
			Running:     m.timers.IsRunning(sessionID),
			Paused:      m.timers.IsPaused(sessionID),
		}, nil
	}

	status := &TimerStatus{}
	if s.TurnStartedAt == nil || (s.State != models.SessionStateOngoing && s.State != models.SessionStatePaused) {
		return status, nil
	}
	ref := m.now()
	if s.State == models.SessionStatePaused && s.PausedAt != nil {
		ref = *s.PausedAt
		status.Paused = true
	} else {
		status.Running = true
	}
	status.RemainingMs = nonNegative(m.turnDuration(s) - ref.Sub(*s.TurnStartedAt)).Milliseconds()
	return status, nil
}

// MarkConnected records a connection. Sessions created on another instance are
// loaded into the local tracker first. Ended sessions are not tracked.
func (m *Manager) MarkConnected(ctx context.Context, sessionID, participantID string) error {
	tracked, err := m.ensureTracked(ctx, sessionID, participantID)
	if err != nil || !tracked {
		return err
	}
	return m.tracker.MarkConnected(sessionID, participantID)
}

func (m *Manager) MarkDisconnected(ctx context.Context, sessionID, participantID string) error {
	tracked, err := m.ensureTracked(ctx, sessionID, participantID)
	if err != nil || !tracked {
		return err
	}
	return m.tracker.MarkDisconnected(sessionID, participantID)
}

// ConnectivityStatus is the tracker view of a session.
func (m *Manager) ConnectivityStatus(sessionID string) map[string]models.ParticipantStatus {
	return m.tracker.GetSessionStatus(sessionID)
}

// Run reacts to connectivity changes until ctx is done: a disconnect pauses an
// ongoing debate, and once everyone is connected a paused debate resumes and a
// waiting one starts.
func (m *Manager) Run(ctx context.Context) {
	ch, unsubscribe := m.tracker.Subscribe(eventBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			m.handleConnectivity(ctx, evt)
		}
	}
}

func (m *Manager) handleConnectivity(ctx context.Context, evt ConnectivityEvent) {
	s, err := m.mutate(ctx, evt.SessionID, func(s *models.DebateSession) error {
		if s.IsEnded() {
			return errNoop
		}
		p := s.Participant(evt.ParticipantID)
		if p == nil || p.IsConnected == evt.Connected {
			return errNoop
		}
		p.IsConnected = evt.Connected
		return nil
	}, nil)
	if err != nil {
		logger.Warn("Connectivity event for unknown session", "session_id", evt.SessionID, "error", err)
		return
	}

	var transitionErr error
	switch {
	case !evt.Connected && s.State == models.SessionStateOngoing:
		logger.Info("Participant disconnected, pausing debate", "session_id", s.SessionID, "participant_id", evt.ParticipantID)
		_, transitionErr = m.PauseSession(ctx, s.SessionID)
	case evt.Connected && s.State == models.SessionStatePaused && m.tracker.AllConnected(s.SessionID):
		logger.Info("All participants reconnected, resuming debate", "session_id", s.SessionID)
		_, transitionErr = m.ResumeSession(ctx, s.SessionID)
	case evt.Connected && s.State == models.SessionStateWaiting && m.tracker.AllConnected(s.SessionID):
		logger.Info("All participants connected, starting debate", "session_id", s.SessionID)
		_, transitionErr = m.StartSession(ctx, s.SessionID)
	}

	// The state moved between our read and the transition.
	if transitionErr != nil && errors.Is(transitionErr, errors.ErrCodeConflict) {
		logger.Debug("Connectivity transition skipped", "session_id", s.SessionID, "error", transitionErr)
		return
	}
	if transitionErr != nil {
		logger.Error("Connectivity transition failed", "session_id", s.SessionID, "error", transitionErr)
	}
}

func (m *Manager) handleTurnTimeout(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := m.now()
	_, err := m.mutate(ctx, sessionID, func(s *models.DebateSession) error {
		if s.State != models.SessionStateOngoing || s.CurrentTurn == nil || s.TurnStartedAt == nil {
			return errNoop
		}
		// A message or turn change landed after this timer was armed.
		if now.Sub(*s.TurnStartedAt) < m.turnDuration(s)-timeoutGrace {
			return errNoop
		}
		next := s.Opponent(*s.CurrentTurn)
		if next == "" {
			return errNoop
		}
		s.CurrentTurn = &next
		s.TurnStartedAt = &now
		return nil
	}, func(s *models.DebateSession) {
		logger.Info("Turn timed out, switching turn", "session_id", s.SessionID, "current_turn", *s.CurrentTurn)
		m.timers.StartTimer(s.SessionID, m.turnDuration(s))
		m.notify(s.SessionID, EventTurnTimeout, map[string]interface{}{"currentTurn": *s.CurrentTurn})
		m.notify(s.SessionID, EventTurnChanged, map[string]interface{}{"currentTurn": *s.CurrentTurn})
		m.notifyMicStatus(s)
	})
	if err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
		logger.Error("Turn timeout handling failed", "session_id", sessionID, "error", err)
	}
}

// mutate runs fn as an optimistic update under the session lock and then runs
// after with the committed snapshot. errNoop from fn skips the write and after.
func (m *Manager) mutate(
	ctx context.Context,
	sessionID string,
	fn func(*models.DebateSession) error,
	after func(*models.DebateSession),
) (*models.DebateSession, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	s, err := m.sessions.Update(ctx, sessionID, fn)
	if stdErrors.Is(err, errNoop) {
		return m.sessions.Get(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if after != nil {
		after(s)
	}
	return s, nil
}

func (m *Manager) afterResume(ctx context.Context, s *models.DebateSession) {
	m.autoEnd.Cancel(s.SessionID)
	m.resumeTurnTimer(s)
	m.persistState(ctx, s)
	logger.Info("Debate session resumed", "session_id", s.SessionID, "total_paused", s.TotalPausedDuration.String())
	m.notify(s.SessionID, EventSessionResumed, s)
	m.notifyMicStatus(s)
}

// resumeTurnTimer continues the local countdown, or rebuilds it from the
// snapshot when the pause happened on another instance.
func (m *Manager) resumeTurnTimer(s *models.DebateSession) {
	if m.timers.ResumeTimer(s.SessionID) {
		return
	}
	remaining := m.turnDuration(s)
	if s.TurnStartedAt != nil {
		remaining -= m.now().Sub(*s.TurnStartedAt)
	}
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	m.timers.StartTimer(s.SessionID, remaining)
}

func (m *Manager) scheduleAutoEnd(sessionID string) {
	m.autoEnd.Schedule(sessionID, m.opts.PauseTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("Auto-ending debate after prolonged pause", "session_id", sessionID)
		_, err := m.endSession(ctx, sessionID, EndReasonPauseTimeout, true)
		if err != nil && !errors.Is(err, errors.ErrCodeConflict) && !errors.Is(err, errors.ErrCodeNotFound) {
			logger.Error("Auto-end failed", "session_id", sessionID, "error", err)
		}
	})
}

// ensureTracked reports whether the participant is tracked once it returns.
// Ended sessions are validated against the snapshot but never tracked again.
func (m *Manager) ensureTracked(ctx context.Context, sessionID, participantID string) (bool, error) {
	if m.tracker.IsParticipantInSession(sessionID, participantID) {
		return true, nil
	}
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !s.HasParticipant(participantID) {
		return false, errors.Newf(errors.ErrCodeNotFound, "participant %s not found in session %s", participantID, sessionID)
	}
	if s.IsEnded() {
		return false, nil
	}
	for _, p := range s.Participants {
		if !m.tracker.IsParticipantInSession(sessionID, p.ID) {
			_ = m.tracker.AddParticipant(sessionID, p.ID, p.IsConnected)
		}
	}
	return true, nil
}

func (m *Manager) persistState(ctx context.Context, s *models.DebateSession) {
	if err := m.recorder.UpdateSessionState(ctx, s.SessionID, s.State, m.now()); err != nil {
		logger.Error("Failed to record session state", "session_id", s.SessionID, "state", s.State, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, topic string, payload interface{}) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, topic, payload); err != nil {
		logger.Error("Failed to publish event", "topic", topic, "error", err)
	}
}

func (m *Manager) notify(sessionID, event string, data interface{}) {
	m.notifier.Notify(Notification{SessionID: sessionID, Event: event, Data: data})
}

func (m *Manager) notifyMicStatus(s *models.DebateSession) {
	for _, p := range s.Participants {
		m.notifier.Notify(Notification{
			SessionID:     s.SessionID,
			ParticipantID: p.ID,
			Event:         EventMicStatus,
			Data: MicStatus{
				ParticipantID: p.ID,
				CanSpeak:      s.State == models.SessionStateOngoing && s.IsTurnOf(p.ID) && !p.Disqualified,
			},
		})
	}
}

func (m *Manager) turnDuration(s *models.DebateSession) time.Duration {
	if s.Rules.TurnDurationSecs > 0 {
		return time.Duration(s.Rules.TurnDurationSecs) * time.Second
	}
	return m.opts.TurnDuration
}

func (m *Manager) defaultRules(debateType string) models.Rules {
	return models.Rules{
		TurnDurationSecs: int(m.opts.TurnDuration / time.Second),
		AllowChat:        true,
		AllowVoice:       true,
		RelaxedMode:      debateType == models.DebateTypeUnprofessional,
	}
}

// foldPause adds the pause span to the paused total and shifts the turn start
// so the turn keeps the time it had left.
func foldPause(s *models.DebateSession, now time.Time) {
	if s.PausedAt == nil {
		return
	}
	span := nonNegative(now.Sub(*s.PausedAt))
	s.TotalPausedDuration += span
	if s.TurnStartedAt != nil {
		shifted := s.TurnStartedAt.Add(span)
		s.TurnStartedAt = &shifted
	}
	s.PausedAt = nil
}

func lastMessages(msgs []models.DebateMessage, n int) []models.DebateMessage {
	if len(msgs) <= n {
		return append([]models.DebateMessage(nil), msgs...)
	}
	return append([]models.DebateMessage(nil), msgs[len(msgs)-n:]...)
}

func participantIDs(s *models.DebateSession) []string {
	ids := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.ID
	}
	return ids
}

func roleHolder(s *models.DebateSession, role string) string {
	for _, p := range s.Participants {
		if p.Role == role {
			return p.ID
		}
	}
	return ""
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func isValidRole(role string) bool {
	return role == models.RolePro || role == models.RoleCon
}

func oppositeRole(role string) string {
	if role == models.RoleCon {
		return models.RolePro
	}
	return models.RoleCon
}

func isValidMessageType(t string) bool {
	switch t {
	case models.MessageTypeChat, models.MessageTypeVoice, models.MessageTypeVideo:
		return true
	}
	return false
}
