package store

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ConnectivityStore mirrors tracker records into short-lived keys so other
// instances can see who is online.
type ConnectivityStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewConnectivityStore(client redis.UniversalClient, ttl time.Duration) *ConnectivityStore {
	return &ConnectivityStore{client: client, ttl: ttl}
}

func ConnectivityKey(sessionID, participantID string) string {
	return connectivityPrefix + sessionID + ":" + participantID
}

func (c *ConnectivityStore) Set(ctx context.Context, sessionID, participantID string, status models.ParticipantStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode connectivity")
	}
	if err := c.client.Set(ctx, ConnectivityKey(sessionID, participantID), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to store connectivity")
	}
	return nil
}

// Get returns the stored status, or nil when the record expired or never existed.
func (c *ConnectivityStore) Get(ctx context.Context, sessionID, participantID string) (*models.ParticipantStatus, error) {
	data, err := c.client.Get(ctx, ConnectivityKey(sessionID, participantID)).Bytes()
	if stdErrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to read connectivity")
	}

	var status models.ParticipantStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to decode connectivity")
	}
	return &status, nil
}

// DeleteSession drops every record of the session.
func (c *ConnectivityStore) DeleteSession(ctx context.Context, sessionID string) error {
	iter := c.client.Scan(ctx, 0, connectivityPrefix+sessionID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to scan connectivity")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to delete connectivity")
	}
	return nil
}
