package digest

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker grants exclusive use of a key for up to ttl. The returned release
// function gives the key back if it is still held by token.
type Locker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Deletes the key only while it still holds our token, so a run that
// outlived its ttl cannot release a lock taken by the next run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, token string, ttl time.Duration) (func(context.Context) error, bool, error) {
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	return release, true, nil
}
