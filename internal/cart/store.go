package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts between requests.
type Store interface {
	Get(ctx context.Context, id string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps each cart as a JSON document that expires after ttl of
// inactivity, the server-side stand-in for a browser tab's memory.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisStore constructs RedisStore.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: "counterpos:cart:"}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get loads a cart, returning ErrCartNotFound once it expired or was deleted.
func (s *RedisStore) Get(ctx context.Context, id string) (Cart, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrCartNotFound
	}
	if err != nil {
		return Cart{}, fmt.Errorf("cart: load %s: %w", id, err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("cart: decode %s: %w", id, err)
	}
	return c, nil
}

// Save writes the cart and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cart: encode %s: %w", c.ID, err)
	}
	return s.client.Set(ctx, s.key(c.ID), raw, s.ttl).Err()
}

// Delete removes the cart.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
