package database

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/store"
	"hotelbooking/internal/store/storetest"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return setupTestDB(t)
	})
}

func TestDB_FileConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		logger := zerolog.New(io.Discard)
		db, err := NewDB(filepath.Join(t.TempDir(), "nested", "records.db"), &logger)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	})
}

func TestDB_IndexColumnsFollowUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Put(ctx, store.Record{
		"PK": "RESERVATION#r1", "SK": "METADATA", "EntityType": "Reservation",
		"GSI4PK": "ROOM#101", "GSI4SK": "RESERVATION#r1",
	}))

	_, err := db.Update(ctx, "RESERVATION#r1", "METADATA", map[string]any{"GSI4PK": "ROOM#202"})
	require.NoError(t, err)

	old, err := store.QueryAll(ctx, db, store.Query{Index: store.IndexGSI4, Partition: "ROOM#101"})
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := store.QueryAll(ctx, db, store.Query{Index: store.IndexGSI4, Partition: "ROOM#202"})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "RESERVATION#r1", moved[0].PK())
}

func TestDB_EntityCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Put(ctx, store.Record{"PK": fmt.Sprintf("ROOM#loc1#%d", i), "SK": "METADATA", "EntityType": "Room"}))
	}
	require.NoError(t, db.Put(ctx, store.Record{"PK": "COMPANY#c1", "SK": "METADATA", "EntityType": "Company"}))

	counts, err := db.EntityCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["Room"])
	assert.Equal(t, int64(1), counts["Company"])
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	t.Run("Get", func(t *testing.T) {
		_, err := db.Get(ctx, "A", "B")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Put", func(t *testing.T) {
		assert.Error(t, db.Put(ctx, store.Record{"PK": "A", "SK": "B"}))
	})

	t.Run("Query", func(t *testing.T) {
		_, err := db.QueryIndex(ctx, store.Query{Partition: "A"})
		assert.Error(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.Error(t, db.Ping(ctx))
	})
}

func TestCompileFilter(t *testing.T) {
	cond, args, err := compileFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, "1", cond)
	assert.Empty(t, args)

	cond, args, err = compileFilter(store.And(
		store.Eq("HotelId", "loc1"),
		store.NotTrue("IsDeleted"),
	))
	require.NoError(t, err)
	assert.Contains(t, cond, "json_extract(attrs, ?) = ?")
	assert.Contains(t, cond, "<> 'true'")
	assert.Equal(t, []any{"$.HotelId", "$.HotelId", "loc1", "$.IsDeleted"}, args)

	_, _, err = compileFilter(&store.Filter{Op: "like", Attr: "Name"})
	assert.ErrorIs(t, err, store.ErrInvalidQuery)
}
