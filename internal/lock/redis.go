package lock

import (
    "context"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lock:"

var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// RedisStore keeps leases as Redis keys with a PX expiry.
type RedisStore struct {
    client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
    return &RedisStore{client: client}
}

func (s *RedisStore) SetIfNotExists(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
    ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, value, ttl).Result()
    if err != nil {
        return false, fmt.Errorf("redis setnx: %w", err)
    }
    return ok, nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
    n, err := compareAndDelete.Run(ctx, s.client, []string{redisKeyPrefix + key}, expected).Int()
    if err != nil {
        return false, fmt.Errorf("redis compare-and-delete: %w", err)
    }
    return n == 1, nil
}
