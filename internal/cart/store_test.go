package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, time.Hour)
}

func TestRedisStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	empty, err := store.Load(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)

	lines := []Line{{ProductID: uuid.New(), ProductName: "Remera", Quantity: 2,
		UnitPrice: decimal.RequireFromString("99.90"), Subtotal: decimal.RequireFromString("199.80")}}
	require.NoError(t, store.Save(ctx, "s1", lines))
	assert.True(t, mr.Exists("cart:s1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:s1"))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, lines[0].ProductID, got[0].ProductID)
	assert.True(t, got[0].Subtotal.Equal(lines[0].Subtotal))

	require.NoError(t, store.Save(ctx, "s1", nil))
	assert.False(t, mr.Exists("cart:s1"))
}

func TestRedisStore_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)
	require.NoError(t, mr.Set("cart:s1", "{not json"))

	_, err := store.Load(ctx, "s1")
	assert.Error(t, err)

	// Open falls back to an empty cart
	c := Open(ctx, store, "s1", quietLogger())
	assert.True(t, c.Empty())
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)
	c := Open(ctx, store, "s1", quietLogger())
	mr.Close()

	err := c.AddItem(ctx, newProduct("A", 10), 1, nil, nil)
	assert.ErrorIs(t, err, ErrNotSynced)
	assert.False(t, c.Synced())
}
