package store

import (
	"context"
	stdErrors "errors"

	"github.com/goccy/go-json"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// QueueStore is the FIFO list of waiting candidates. Every mutation that depends on the
// current contents runs in a WATCH/MULTI transaction and is retried on conflict.
type QueueStore struct {
	client redis.UniversalClient
	key    string
}

func NewQueueStore(client redis.UniversalClient) *QueueStore {
	return &QueueStore{client: client, key: QueueKey}
}

// Push appends the candidate unless the user is already queued. It reports whether it was added.
func (q *QueueStore) Push(ctx context.Context, candidate *models.MatchCandidate) (bool, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode candidate")
	}

	added := false
	err = q.transact(ctx, func(tx *redis.Tx) error {
		added = false
		current, err := q.read(ctx, tx)
		if err != nil {
			return err
		}
		for _, c := range current {
			if c.UserID == candidate.UserID {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, q.key, data)
			return nil
		})
		if err == nil {
			added = true
		}
		return err
	})
	return added, err
}

// List returns a snapshot of the queue in insertion order.
func (q *QueueStore) List(ctx context.Context) ([]models.MatchCandidate, error) {
	return q.read(ctx, q.client)
}

// Contains reports whether the user is queued.
func (q *QueueStore) Contains(ctx context.Context, userID string) (bool, error) {
	current, err := q.List(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range current {
		if c.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Remove drops every entry for userIDs. Absent users are not an error.
// It reports whether anything was removed.
func (q *QueueStore) Remove(ctx context.Context, userIDs ...string) (bool, error) {
	drop := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		drop[id] = struct{}{}
	}

	removed := false
	err := q.transact(ctx, func(tx *redis.Tx) error {
		removed = false
		current, err := q.read(ctx, tx)
		if err != nil {
			return err
		}

		remaining := make([]interface{}, 0, len(current))
		for _, c := range current {
			if _, ok := drop[c.UserID]; ok {
				continue
			}
			data, err := json.Marshal(c)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode candidate")
			}
			remaining = append(remaining, data)
		}
		if len(remaining) == len(current) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, q.key)
			if len(remaining) > 0 {
				pipe.RPush(ctx, q.key, remaining...)
			}
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	})
	return removed, err
}

// Take removes all of userIDs in one step, only if every one of them is queued.
// It reports whether they were taken.
func (q *QueueStore) Take(ctx context.Context, userIDs ...string) (bool, error) {
	want := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}

	taken := false
	err := q.transact(ctx, func(tx *redis.Tx) error {
		taken = false
		current, err := q.read(ctx, tx)
		if err != nil {
			return err
		}

		found := 0
		remaining := make([]interface{}, 0, len(current))
		for _, c := range current {
			if _, ok := want[c.UserID]; ok {
				found++
				continue
			}
			data, err := json.Marshal(c)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode candidate")
			}
			remaining = append(remaining, data)
		}
		if found < len(want) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, q.key)
			if len(remaining) > 0 {
				pipe.RPush(ctx, q.key, remaining...)
			}
			return nil
		})
		if err == nil {
			taken = true
		}
		return err
	})
	return taken, err
}

// Restore puts candidates back at the head of the queue in the given order, keeping
// their original EnqueuedAt. Users already queued again are skipped.
// It returns how many were restored.
func (q *QueueStore) Restore(ctx context.Context, candidates ...models.MatchCandidate) (int, error) {
	restored := 0
	err := q.transact(ctx, func(tx *redis.Tx) error {
		restored = 0
		current, err := q.read(ctx, tx)
		if err != nil {
			return err
		}
		queued := make(map[string]struct{}, len(current))
		for _, c := range current {
			queued[c.UserID] = struct{}{}
		}

		head := make([]interface{}, 0, len(candidates))
		for _, c := range candidates {
			if _, ok := queued[c.UserID]; ok {
				continue
			}
			queued[c.UserID] = struct{}{}
			data, err := json.Marshal(c)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode candidate")
			}
			head = append(head, data)
		}
		if len(head) == 0 {
			return nil
		}

		// LPUSH inserts one by one, so push in reverse to keep the given order.
		reversed := make([]interface{}, len(head))
		for i, v := range head {
			reversed[len(head)-1-i] = v
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, q.key, reversed...)
			return nil
		})
		if err == nil {
			restored = len(head)
		}
		return err
	})
	return restored, err
}

// Clear empties the queue.
func (q *QueueStore) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to clear queue")
	}
	return nil
}

func (q *QueueStore) read(ctx context.Context, c redis.Cmdable) ([]models.MatchCandidate, error) {
	raw, err := c.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to read queue")
	}

	out := make([]models.MatchCandidate, 0, len(raw))
	for _, item := range raw {
		var c models.MatchCandidate
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			// A corrupt entry must not block the rest of the queue.
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (q *QueueStore) transact(ctx context.Context, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := q.client.Watch(ctx, fn, q.key)
		if stdErrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if _, ok := err.(*errors.AppError); ok {
				return err
			}
			return errors.Wrap(err, errors.ErrCodeUnavailable, "queue transaction failed")
		}
		return nil
	}
	return errors.New(errors.ErrCodeConflict, "queue transaction retries exhausted")
}
