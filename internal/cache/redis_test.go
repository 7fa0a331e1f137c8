package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/config"
	"hotelbooking/internal/models"
)

func TestRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	c := NewRedisCache(client, time.Hour, "hb:")
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		rooms := []models.Room{{Number: "101", LocationID: "loc1", IsActive: true}}
		require.NoError(t, c.Set(ctx, "rooms:loc1", rooms))
		assert.True(t, s.Exists("hb:rooms:loc1"))
		assert.Equal(t, time.Hour, s.TTL("hb:rooms:loc1"))

		var got []models.Room
		ok, err := c.Get(ctx, "rooms:loc1", &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, rooms, got)
	})

	t.Run("Miss", func(t *testing.T) {
		var got []models.Room
		ok, err := c.Get(ctx, "rooms:nope", &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "companies", []models.Company{{ID: "c1"}}))
		s.FastForward(2 * time.Hour)
		var got []models.Company
		ok, err := c.Get(ctx, "companies", &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "locations", []models.Location{{ID: "loc1"}}))
		require.NoError(t, c.Set(ctx, "rooms:loc1", []models.Room{}))
		require.NoError(t, c.Set(ctx, "rooms:loc2", []models.Room{}))

		require.NoError(t, c.Invalidate(ctx, "locations"))
		assert.False(t, s.Exists("hb:locations"))

		require.NoError(t, c.InvalidatePrefix(ctx, "rooms:"))
		assert.False(t, s.Exists("hb:rooms:loc1"))
		assert.False(t, s.Exists("hb:rooms:loc2"))
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := c.Allow(ctx, "alice", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := c.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = c.Allow(ctx, "bob", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		s.FastForward(2 * time.Minute)
		allowed, err = c.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisCache_Down(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	c := NewRedisCache(client, time.Hour, "")
	ctx := context.Background()

	var got []models.Room
	_, err = c.Get(ctx, "rooms:loc1", &got)
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, "rooms:loc1", got))
	_, err = c.Allow(ctx, "alice", 1, time.Minute)
	assert.Error(t, err)
	assert.Error(t, Ping(ctx, client))
}

func TestRedisCache_NilClient(t *testing.T) {
	c := NewRedisCache(nil, time.Hour, "")
	_, err := c.Get(context.Background(), "k", &struct{}{})
	assert.Error(t, err)
	assert.Error(t, c.Invalidate(context.Background(), "k"))
	assert.NoError(t, Close(nil))
}
