package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Count int    `json:"count"`
	Note  string `json:"note"`
}

func newRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, "test:"), mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	stores := map[string]Store{
		DriverMemory: NewMemoryStore(time.Minute),
		DriverRedis:  redisStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, found, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
			got, found, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, s.Delete(ctx, "k"))
			_, found, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, SetJSON(ctx, s, "json", record{Count: 3, Note: "x"}, 0))
			var r record
			found, err = GetJSON(ctx, s, "json", &r)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, record{Count: 3, Note: "x"}, r)

			assert.NoError(t, s.Ping(ctx))
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, found, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}

func TestRedisStoreExpiryAndPrefix(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("test:k"))

	mr.FastForward(2 * time.Minute)
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreErrorsWhenDown(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, _, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
}
