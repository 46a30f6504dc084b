package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedis parses a redis:// URL and checks the connection.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("data: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("data: redis ping: %w", err)
	}
	return rdb, nil
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker is an advisory lock built on SET NX PX.
type RedisLocker struct {
	rdb redis.Scripter
	set func(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd
}

// NewRedisLocker returns a locker over rdb.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, set: rdb.SetNX}
}

// TryLock takes key for ttl. The returned unlock releases it only if it has
// not expired and been taken by someone else.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.set(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("data: lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, l.rdb, []string{key}, token)
	}
	return unlock, true, nil
}
