package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/google/uuid"

	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// unlockScript releases only a lock we still own.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Locker implements ports.DistributedLocker with SET NX PX and a compare
// and delete release. Holders that crash are recovered via the TTL.
type Locker struct {
	client  *backend.Client
	prefix  string
	retryIn time.Duration
}

// NewLocker creates a Redis-backed locker. prefix namespaces lock keys so
// several deployments can share one Redis.
func NewLocker(client *backend.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Locker{
		client:  client,
		prefix:  prefix,
		retryIn: 100 * time.Millisecond,
	}
}

// Lock blocks until the lock for key is acquired or ctx is done. The token
// stored under the key ties the release to this acquisition.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryIn)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if success {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
