package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	store, _ := setupStore(t)

	c, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestStore_UpdatePersistsEveryMutation(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "c1", func(c Cart) Cart { return c.Add(mug) })
	require.NoError(t, err)
	_, err = store.Update(ctx, "c1", func(c Cart) Cart { return c.Add(mug) })
	require.NoError(t, err)

	raw, err := mr.Get("cart:c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"schema":2,"items":[{"product_id":"p1","title":"Mug","price":2000,"quantity":2}]}`, raw)
	assert.Positive(t, mr.TTL("cart:c1"))
}

func TestStore_LoadMigratesLegacy(t *testing.T) {
	store, mr := setupStore(t)
	require.NoError(t, mr.Set("cart:old", `[{"id":"p1","title":"Mug","price":20,"qty":2}]`))

	c, err := store.Load(context.Background(), "old")
	require.NoError(t, err)
	assert.EqualValues(t, 4000, c.Total())
}

func TestStore_UntrustedSnapshotStartsEmpty(t *testing.T) {
	for name, raw := range map[string]string{
		"future schema": `{"schema":9,"items":[{"product_id":"p1","title":"Mug","price":2000,"quantity":1}]}`,
		"garbage":       `{not json`,
	} {
		t.Run(name, func(t *testing.T) {
			store, mr := setupStore(t)
			ctx := context.Background()
			require.NoError(t, mr.Set("cart:bad", raw))

			c, err := store.Load(ctx, "bad")
			require.NoError(t, err)
			assert.True(t, c.Empty())

			c, err = store.Update(ctx, "bad", func(c Cart) Cart { return c.Add(plate) })
			require.NoError(t, err)
			require.Len(t, c.Items, 1)

			stored, err := mr.Get("cart:bad")
			require.NoError(t, err)
			assert.JSONEq(t, `{"schema":2,"items":[{"product_id":"p2","title":"Plate","price":1250,"quantity":1}]}`, stored)
		})
	}
}

func TestStore_ClearThenLoadIsEmpty(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "c1", func(c Cart) Cart { return c.Add(mug).Add(plate) })
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, "c1"))

	c, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestStore_ConcurrentAddsAreNotLost(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", func(c Cart) Cart { return c.Add(mug) })
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	c, err := store.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, ok, c.Quantity("p1"))
}

func TestStore_RedisDownSurfacesError(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()

	_, err := store.Update(context.Background(), "c1", func(c Cart) Cart { return c.Add(mug) })
	assert.Error(t, err)
}
