package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func candidate(id string) *models.MatchCandidate {
	return &models.MatchCandidate{
		UserID:     id,
		DebateType: models.DebateTypeProfessional,
		Mode:       models.ModeText,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestQueueStore_PushListRemove(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	q := NewQueueStore(client)

	for _, id := range []string{"A", "B", "C"} {
		added, err := q.Push(ctx, candidate(id))
		require.NoError(t, err)
		assert.True(t, added)
	}

	added, err := q.Push(ctx, candidate("B"))
	require.NoError(t, err)
	assert.False(t, added, "duplicate push must be ignored")

	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"A", "B", "C"}, ids(list))

	removed, err := q.Remove(ctx, "B")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.Remove(ctx, "B")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent user is a no-op")

	ok, err := q.Contains(ctx, "C")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err = q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, ids(list))

	require.NoError(t, q.Clear(ctx))
	list, err = q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueueStore_Take(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	q := NewQueueStore(client)

	for _, id := range []string{"A", "B", "C"} {
		_, err := q.Push(ctx, candidate(id))
		require.NoError(t, err)
	}

	taken, err := q.Take(ctx, "A", "Z")
	require.NoError(t, err)
	assert.False(t, taken, "take must be all or nothing")

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids(list))

	taken, err = q.Take(ctx, "C", "A")
	require.NoError(t, err)
	assert.True(t, taken)

	list, err = q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ids(list))
}

func TestQueueStore_RestoreKeepsOrderAtHead(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	q := NewQueueStore(client)

	a, b := candidate("A"), candidate("B")
	a.EnqueuedAt = time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	for _, c := range []*models.MatchCandidate{a, b, candidate("C")} {
		_, err := q.Push(ctx, c)
		require.NoError(t, err)
	}
	taken, err := q.Take(ctx, "A", "B")
	require.NoError(t, err)
	require.True(t, taken)

	restored, err := q.Restore(ctx, *a, *b)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids(list))
	assert.True(t, list[0].EnqueuedAt.Equal(a.EnqueuedAt))

	restored, err = q.Restore(ctx, *a)
	require.NoError(t, err)
	assert.Zero(t, restored, "already queued users are skipped")
	list, err = q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestQueueStore_ConcurrentRemovals(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	q := NewQueueStore(client)

	const n = 20
	all := make([]string, n)
	for i := 0; i < n; i++ {
		all[i] = string(rune('a' + i))
		_, err := q.Push(ctx, candidate(all[i]))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i += 2 {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := q.Remove(ctx, id)
			assert.NoError(t, err)
		}(all[i])
	}
	wg.Wait()

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n/2)
	for _, c := range list {
		idx := int(c.UserID[0] - 'a')
		assert.Equal(t, 1, idx%2, "user %s should have been removed", c.UserID)
	}
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	l := NewLocker(client)

	token, ok, err := l.Acquire(ctx, MatchLockKey, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, token, 24)
	stored, err := mr.Get(MatchLockKey)
	require.NoError(t, err)
	assert.Equal(t, token, stored)

	_, ok, err = l.Acquire(ctx, MatchLockKey, time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must be skipped while held")

	released, err := l.Release(ctx, MatchLockKey, "someone-else")
	require.NoError(t, err)
	assert.False(t, released, "foreign token must not release the lock")

	released, err = l.Release(ctx, MatchLockKey, token)
	require.NoError(t, err)
	assert.True(t, released)

	_, ok, err = l.Acquire(ctx, MatchLockKey, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.Acquire(ctx, MatchLockKey, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease must be acquirable")
}

func TestMarkers(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	m := NewMarkers(client)

	assert.Equal(t, PairKey("A", "B"), PairKey("B", "A"))

	require.NoError(t, m.MarkMatched(ctx, 10*time.Second, "A", "B"))

	matched, err := m.IsMatched(ctx, "A")
	require.NoError(t, err)
	assert.True(t, matched)

	among, err := m.MatchedAmong(ctx, []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, among)

	first, err := m.ClaimMatchEvent(ctx, "A", "B", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := m.ClaimMatchEvent(ctx, "B", "A", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, second, "reversed pair shares the idempotency marker")

	mr.FastForward(11 * time.Second)
	matched, err = m.IsMatched(ctx, "A")
	require.NoError(t, err)
	assert.False(t, matched, "marker must expire")
}

func TestMarkers_Release(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	m := NewMarkers(client)

	require.NoError(t, m.MarkMatched(ctx, time.Minute, "A", "B"))
	claimed, err := m.ClaimMatchEvent(ctx, "A", "B", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, m.ReleaseMatched(ctx, "A", "B"))
	require.NoError(t, m.ReleaseMatchEvent(ctx, "B", "A"))
	assert.False(t, mr.Exists(MatchedKey("A")))
	assert.False(t, mr.Exists(MatchedKey("B")))

	claimed, err = m.ClaimMatchEvent(ctx, "A", "B", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "released pair can be claimed again")
}

func TestSessionStore_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	s := NewSessionStore(client)

	session := &models.DebateSession{
		SessionID:    "s1",
		State:        models.SessionStateWaiting,
		Participants: []models.Participant{{ID: "p1"}, {ID: "p2"}},
	}
	require.NoError(t, s.Create(ctx, session))

	err := s.Create(ctx, session)
	assert.True(t, errors.Is(err, errors.ErrCodeAlreadyExists))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	updated, err := s.Update(ctx, "s1", func(ds *models.DebateSession) error {
		ds.State = models.SessionStateOngoing
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateOngoing, updated.State)
	assert.Equal(t, int64(2), updated.Version)

	_, err = s.Update(ctx, "s1", func(ds *models.DebateSession) error {
		ds.State = models.SessionStateEnded
		return errors.New(errors.ErrCodeConflict, "nope")
	})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))

	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateOngoing, got.State, "aborted update must not write")

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	deleted, err := s.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSessionStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	s := NewSessionStore(client)

	require.NoError(t, s.Create(ctx, &models.DebateSession{
		SessionID:    "s1",
		Participants: []models.Participant{{ID: "p1"}, {ID: "p2"}},
	}))

	const writers = 15
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "s1", func(ds *models.DebateSession) error {
				ds.Participants[0].Score++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, writers, got.Participants[0].Score)
	assert.Equal(t, int64(writers+1), got.Version)
}

func TestConnectivityStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	c := NewConnectivityStore(client, 30*time.Second)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, c.Set(ctx, "s1", "p1", models.ParticipantStatus{IsConnected: true, LastSeen: now}))
	require.NoError(t, c.Set(ctx, "s1", "p2", models.ParticipantStatus{IsConnected: false, LastSeen: now}))
	require.NoError(t, c.Set(ctx, "s2", "p1", models.ParticipantStatus{IsConnected: true, LastSeen: now}))

	status, err := c.Get(ctx, "s1", "p1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.IsConnected)
	assert.True(t, status.LastSeen.Equal(now))

	require.NoError(t, c.DeleteSession(ctx, "s1"))
	status, err = c.Get(ctx, "s1", "p2")
	require.NoError(t, err)
	assert.Nil(t, status)

	status, err = c.Get(ctx, "s2", "p1")
	require.NoError(t, err)
	assert.NotNil(t, status, "other sessions are untouched")

	mr.FastForward(31 * time.Second)
	status, err = c.Get(ctx, "s2", "p1")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func ids(list []models.MatchCandidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.UserID
	}
	return out
}
