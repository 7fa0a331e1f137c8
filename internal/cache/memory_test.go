package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/models"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	locations := []models.Location{{ID: "loc1", SortOrder: 1}}
	require.NoError(t, c.Set(ctx, "locations", locations))
	locations[0].ID = "mutated"

	var got []models.Location
	ok, err := c.Get(ctx, "locations", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "loc1", got[0].ID)

	now = now.Add(2 * time.Minute)
	ok, err = c.Get(ctx, "locations", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "rooms:loc1", []models.Room{}))
	require.NoError(t, c.Set(ctx, "rooms:loc2", []models.Room{}))
	require.NoError(t, c.Set(ctx, "companies", []models.Company{}))
	require.NoError(t, c.InvalidatePrefix(ctx, "rooms:"))
	var rooms []models.Room
	ok, _ = c.Get(ctx, "rooms:loc1", &rooms)
	assert.False(t, ok)
	var companies []models.Company
	ok, _ = c.Get(ctx, "companies", &companies)
	assert.True(t, ok)

	require.NoError(t, c.Invalidate(ctx, "companies"))
	ok, _ = c.Get(ctx, "companies", &companies)
	assert.False(t, ok)
}

func TestMemoryCache_Allow(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := c.Allow(ctx, "alice", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := c.Allow(ctx, "alice", 2, time.Second)
	assert.False(t, allowed)

	now = now.Add(2 * time.Second)
	allowed, _ = c.Allow(ctx, "alice", 2, time.Second)
	assert.True(t, allowed)
}
