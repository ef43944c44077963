package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Markers keeps the short-lived "recently matched" and "match event emitted" flags.
type Markers struct {
	client redis.UniversalClient
}

func NewMarkers(client redis.UniversalClient) *Markers {
	return &Markers{client: client}
}

func MatchedKey(userID string) string {
	return matchedPrefix + userID
}

// PairKey is order independent so (a,b) and (b,a) share one idempotency marker.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

func MatchEventKey(a, b string) string {
	return matchEventPrefix + PairKey(a, b)
}

// MarkMatched flags every user as recently matched for ttl.
func (m *Markers) MarkMatched(ctx context.Context, ttl time.Duration, userIDs ...string) error {
	_, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Set(ctx, MatchedKey(id), "true", ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to set matched markers")
	}
	return nil
}

// IsMatched reports whether the user carries a live matched marker.
func (m *Markers) IsMatched(ctx context.Context, userID string) (bool, error) {
	n, err := m.client.Exists(ctx, MatchedKey(userID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to read matched marker")
	}
	return n > 0, nil
}

// MatchedAmong returns the subset of userIDs carrying a matched marker, in one round trip.
func (m *Markers) MatchedAmong(ctx context.Context, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = MatchedKey(id)
	}
	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to read matched markers")
	}
	for i, v := range values {
		if v != nil {
			out[userIDs[i]] = true
		}
	}
	return out, nil
}

// ClaimMatchEvent sets the idempotency marker for the pair. Only the caller that
// newly sets it gets true and may emit the event.
func (m *Markers) ClaimMatchEvent(ctx context.Context, a, b string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, MatchEventKey(a, b), "true", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to set match event marker")
	}
	return ok, nil
}

// ReleaseMatched drops the matched markers of userIDs.
func (m *Markers) ReleaseMatched(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = MatchedKey(id)
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to release matched markers")
	}
	return nil
}

// ReleaseMatchEvent drops the idempotency marker so the pair can be emitted again.
func (m *Markers) ReleaseMatchEvent(ctx context.Context, a, b string) error {
	if err := m.client.Del(ctx, MatchEventKey(a, b)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to release match event marker")
	}
	return nil
}
