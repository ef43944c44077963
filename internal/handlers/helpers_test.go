package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/config"
	"github.com/mroshb/debate_hub/internal/matchmaking"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/security"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_minimum_32_chars"

type memoryRecorder struct {
	mu      sync.Mutex
	records map[string]*models.DebateSessionRecord
	deleted []string
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{records: make(map[string]*models.DebateSessionRecord)}
}

func (r *memoryRecorder) CreateSession(_ context.Context, s *models.DebateSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s.SessionID] = &models.DebateSessionRecord{
		ID: s.SessionID, Topic: s.Topic, DebateType: s.DebateType, Mode: s.Mode, State: s.State,
	}
	return nil
}

func (r *memoryRecorder) AddParticipant(context.Context, string, models.Participant) error {
	return nil
}

func (r *memoryRecorder) UpdateSessionState(_ context.Context, sessionID, state string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[sessionID]; ok {
		rec.State = state
	}
	return nil
}

func (r *memoryRecorder) AddMessage(context.Context, string, models.DebateMessage) error {
	return nil
}

func (r *memoryRecorder) SetParticipantDisqualified(context.Context, string, string) error {
	return nil
}

func (r *memoryRecorder) EndSession(_ context.Context, sessionID string, eval *models.Evaluation, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[sessionID]; ok {
		rec.State = models.SessionStateEnded
		rec.WinnerID = eval.WinnerID
		rec.Summary = eval.Summary
		rec.EndedAt = &endedAt
	}
	return nil
}

func (r *memoryRecorder) ListEndedSessions(_ context.Context, limit int) ([]models.DebateSessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DebateSessionRecord
	for _, rec := range r.records {
		if rec.State == models.SessionStateEnded && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memoryRecorder) DeleteSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, sessionID)
	r.deleted = append(r.deleted, sessionID)
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }

type memoryMatches struct {
	matches []models.Match
	last    *models.MatchFilters
}

func (m *memoryMatches) ListMatches(_ context.Context, filters *models.MatchFilters) ([]models.Match, error) {
	m.last = filters
	var out []models.Match
	for _, match := range m.matches {
		if filters.UserID != "" && match.UserAID != filters.UserID && match.UserBID != filters.UserID {
			continue
		}
		out = append(out, match)
	}
	return out, nil
}

type testEnv struct {
	handlers *HandlerManager
	app      *fiber.App
	recorder *memoryRecorder
	matches  *memoryMatches
	mr       *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rec := newMemoryRecorder()
	hub := NewHub()
	t.Cleanup(hub.Close)
	tracker := session.NewParticipantTracker(nil, time.Millisecond)
	manager := session.NewManager(store.NewSessionStore(client), tracker, rec, nopPublisher{}, hub, session.Options{})
	t.Cleanup(manager.Close)

	matches := &memoryMatches{}
	h := &HandlerManager{
		Config:     &config.Config{JWTSecret: testSecret},
		Matchmaker: matchmaking.NewMatchmaker(store.NewQueueStore(client), store.NewMarkers(client)),
		Matches:    matches,
		Sessions:   manager,
		Results:    rec,
		Hub:        hub,
	}

	app := NewApp("test", false)
	h.RegisterMatchmakingRoutes(app)
	h.RegisterDebateRoutes(app)

	return &testEnv{handlers: h, app: app, recorder: rec, matches: matches, mr: mr}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := security.GenerateJWT(userID, role, testSecret)
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Reason  string          `json:"reason"`
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body interface{}) (int, apiResponse) {
	t.Helper()
	status, raw := e.doRaw(t, method, path, tok, body)
	var out apiResponse
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (e *testEnv) doRaw(t *testing.T, method, path, tok string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeData(t *testing.T, resp apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
