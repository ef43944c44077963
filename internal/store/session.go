package store

import (
	"context"
	stdErrors "errors"

	"github.com/goccy/go-json"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps debate session snapshots. Update is an optimistic
// read-modify-write guarded by WATCH and the snapshot Version.
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func SessionKey(sessionID string) string {
	return sessionPrefix + sessionID
}

// Create stores a new snapshot. It fails with ALREADY_EXISTS when the id is taken.
func (s *SessionStore) Create(ctx context.Context, session *models.DebateSession) error {
	session.Version = 1
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode session")
	}

	ok, err := s.client.SetNX(ctx, SessionKey(session.SessionID), data, 0).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to store session")
	}
	if !ok {
		return errors.New(errors.ErrCodeAlreadyExists, "session already exists")
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.DebateSession, error) {
	return s.get(ctx, s.client, sessionID)
}

// Update applies fn to the current snapshot and writes it back if nobody else wrote
// in between, retrying otherwise. An error from fn aborts without writing.
func (s *SessionStore) Update(ctx context.Context, sessionID string, fn func(*models.DebateSession) error) (*models.DebateSession, error) {
	key := SessionKey(sessionID)
	var updated *models.DebateSession

	txf := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		version := current.Version

		if err := fn(current); err != nil {
			return err
		}
		current.Version = version + 1

		data, err := json.Marshal(current)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode session")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = current
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if stdErrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, errors.New(errors.ErrCodeConflict, "session update retries exhausted")
}

// Delete removes the snapshot. It reports whether one existed.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, SessionKey(sessionID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to delete session")
	}
	return n > 0, nil
}

func (s *SessionStore) get(ctx context.Context, c redis.Cmdable, sessionID string) (*models.DebateSession, error) {
	data, err := c.Get(ctx, SessionKey(sessionID)).Bytes()
	if stdErrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.ErrCodeNotFound, "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to read session")
	}

	var session models.DebateSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to decode session")
	}
	return &session, nil
}
