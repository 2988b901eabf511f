package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

const maxUpdateRetries = 5

// RedisStore keeps one snapshot per cart id.
type RedisStore struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{RDB: rdb, TTL: 30 * 24 * time.Hour}
}

func storeKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

// load treats a snapshot that fails to decode as an empty cart, so the next
// Update overwrites the slot.
func load(ctx context.Context, get func(ctx context.Context, key string) *redis.StringCmd, cartID string) (Cart, error) {
	data, err := get(ctx, storeKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{Items: []Item{}}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get failed: %w", err)
	}
	c, err := Decode(data)
	if errors.Is(err, ErrCorrupt) || errors.Is(err, ErrUnknownSchema) {
		logging.FromContext(ctx).Warn("cart_snapshot_discarded", "cart_id", cartID, "error", err)
		return Cart{Items: []Item{}}, nil
	}
	return c, err
}

func (s *RedisStore) Load(ctx context.Context, cartID string) (Cart, error) {
	return load(ctx, s.RDB.Get, cartID)
}

func (s *RedisStore) Save(ctx context.Context, cartID string, c Cart) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := s.RDB.Set(ctx, storeKey(cartID), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Update applies fn to the stored cart and writes the result back. A
// concurrent write to the same cart makes the transaction retry with the
// fresh value instead of overwriting it.
func (s *RedisStore) Update(ctx context.Context, cartID string, fn func(Cart) Cart) (Cart, error) {
	key := storeKey(cartID)
	var result Cart

	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx.Get, cartID)
		if err != nil {
			return err
		}
		next := fn(current)
		data, err := Encode(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.TTL)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.RDB.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Cart{}, err
	}
	return Cart{}, fmt.Errorf("cart %s: too much contention", cartID)
}

// Clear persists an empty cart.
func (s *RedisStore) Clear(ctx context.Context, cartID string) error {
	return s.Save(ctx, cartID, Cart{}.Clear())
}
