package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// CartLockKey builds redis keys guarding cart mutations and checkout.
func CartLockKey(cartID string) string {
	return fmt.Sprintf("counterpos:cart:%s:lock", cartID)
}

// ErrLocked indicates another request holds the lock.
var ErrLocked = fmt.Errorf("resource is busy, retry shortly: %w", httpx.ErrConflict)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived exclusive locks backed by Redis.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewLocker constructs a Locker whose locks expire after ttl if never released.
func NewLocker(client redis.Cmdable, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes key or returns ErrLocked. The returned func releases it and
// only deletes the key while this holder still owns it.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		_ = unlockScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}
