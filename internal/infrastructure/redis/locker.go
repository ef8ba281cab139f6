package redis

import (
	"auction-settlement/internal/domain"
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const lockRetryInterval = 20 * time.Millisecond

// Deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `)

// RedisListingLocker is a listing lock shared by every engine instance.
// The key expires after ttl so a crashed holder cannot wedge a listing.
type RedisListingLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisListingLocker(client *redis.Client, ttl, wait time.Duration) *RedisListingLocker {
	return &RedisListingLocker{client: client, ttl: ttl, wait: wait}
}

func lockKey(listingID string) string {
	return fmt.Sprintf("listing:%s:lock", listingID)
}

// Lock polls until the lock is acquired, ctx is done or wait elapses.
func (l *RedisListingLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	key := lockKey(listingID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", listingID, err)
		}
		if ok {
			return func() { l.unlock(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", listingID, domain.ErrLockTimeout)
		}
		select {
		case <-time.After(lockRetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *RedisListingLocker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = unlockScript.Run(ctx, l.client, []string{key}, token).Err()
}
