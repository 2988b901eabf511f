package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TagProducts = "products"

	entryPrefix = "page:"
	tagPrefix   = "tag:"
)

// TagCache stores rendered responses in Redis and indexes them by tag so a
// whole group can be dropped at once.
type TagCache struct {
	RDB     *redis.Client
	BaseTTL time.Duration
}

func NewTagCache(rdb *redis.Client, ttl time.Duration) *TagCache {
	return &TagCache{RDB: rdb, BaseTTL: ttl}
}

// PathTag is the tag every entry cached for a URL path carries.
func PathTag(path string) string {
	return "path:" + path
}

func (tc *TagCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := tc.RDB.Get(ctx, entryPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, true, nil
}

func (tc *TagCache) Set(ctx context.Context, key string, value []byte, tags ...string) error {
	ttl := tc.BaseTTL + time.Duration(rand.Intn(30))*time.Second

	_, err := tc.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, entryPrefix+key, value, ttl)
		for _, tag := range tags {
			p.SAdd(ctx, tagPrefix+tag, key)
			p.Expire(ctx, tagPrefix+tag, tc.BaseTTL*2)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops every entry carrying the tag and returns how many keys
// were removed.
func (tc *TagCache) Invalidate(ctx context.Context, tag string) (int, error) {
	keys, err := tc.RDB.SMembers(ctx, tagPrefix+tag).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers failed: %w", err)
	}

	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, entryPrefix+k)
	}
	del = append(del, tagPrefix+tag)

	if err := tc.RDB.Del(ctx, del...).Err(); err != nil {
		return 0, fmt.Errorf("redis del failed: %w", err)
	}
	return len(keys), nil
}
