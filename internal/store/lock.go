package store

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out lease locks: SET NX PX with a random token.
type Locker struct {
	client redis.UniversalClient
}

func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Acquire tries once to take the lease. A held lock is not an error: it returns ok=false.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token, err = utils.GenerateRandomID(24)
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to generate lock token")
	}
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to acquire lock")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lease if the token still owns it. It reports whether the key was deleted.
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil && !stdErrors.Is(err, redis.Nil) {
		return false, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to release lock")
	}
	return n == 1, nil
}
