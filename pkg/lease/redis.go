package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries our token, so an
// expired lease re-acquired by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance, for multi-node
// deployments where workers on different hosts race for the same campaign.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "lease"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.New().String()
	full := l.prefix + ":" + key

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", full, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return &redisLease{locker: l, key: full, token: token}, nil
}

func (rl *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, rl.locker.client, []string{rl.key}, rl.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lease %s: %w", rl.key, err)
	}
	return nil
}
