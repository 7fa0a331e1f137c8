// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("GetPut", func(t *testing.T) { testGetPut(t, newStore(t)) })
	t.Run("PutIfAbsent", func(t *testing.T) { testPutIfAbsent(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("QueryIndex", func(t *testing.T) { testQueryIndex(t, newStore(t)) })
	t.Run("Pagination", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("Filters", func(t *testing.T) { testFilters(t, newStore(t)) })
	t.Run("ConcurrentPutIfAbsent", func(t *testing.T) { testConcurrentPutIfAbsent(t, newStore(t)) })
}

func testGetPut(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "A#1", "METADATA")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec := store.Record{"PK": "A#1", "SK": "METADATA", "Name": "first", "Count": 3, "Active": true}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "A#1", "METADATA")
	require.NoError(t, err)
	assert.Equal(t, "first", got.String("Name"))
	assert.Equal(t, int64(3), got.Int("Count"))
	assert.True(t, got.Bool("Active"))

	rec["Name"] = "second"
	require.NoError(t, s.Put(ctx, rec))
	got, err = s.Get(ctx, "A#1", "METADATA")
	require.NoError(t, err)
	assert.Equal(t, "second", got.String("Name"))

	require.NoError(t, s.DeleteItem(ctx, "A#1", "METADATA"))
	require.NoError(t, s.DeleteItem(ctx, "A#1", "METADATA"))
	_, err = s.Get(ctx, "A#1", "METADATA")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Error(t, s.Put(ctx, store.Record{"PK": "only-pk"}))
	assert.NoError(t, s.Ping(ctx))
}

func testPutIfAbsent(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec := store.Record{"PK": "NIGHT#1", "SK": "CLAIM", "Owner": "a"}

	require.NoError(t, s.PutIfAbsent(ctx, rec))
	err := s.PutIfAbsent(ctx, store.Record{"PK": "NIGHT#1", "SK": "CLAIM", "Owner": "b"})
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	got, err := s.Get(ctx, "NIGHT#1", "CLAIM")
	require.NoError(t, err)
	assert.Equal(t, "a", got.String("Owner"))
}

func testUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Update(ctx, "R#1", "METADATA", map[string]any{"Notes": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, "R#1", "METADATA")
	assert.ErrorIs(t, err, store.ErrNotFound, "update must not create records")

	require.NoError(t, s.Put(ctx, store.Record{"PK": "R#1", "SK": "METADATA", "Notes": "a", "Status": "Pending", "Tmp": "t"}))

	post, err := s.Update(ctx, "R#1", "METADATA", map[string]any{"Notes": "b", "Tmp": nil, "Seq": 2})
	require.NoError(t, err)
	assert.Equal(t, "b", post.String("Notes"))
	assert.Equal(t, "Pending", post.String("Status"), "post-image carries untouched attributes")
	assert.False(t, post.Has("Tmp"))
	assert.Equal(t, int64(2), post.Int("Seq"))
	assert.Equal(t, "R#1", post.PK())

	_, err = s.Update(ctx, "R#1", "METADATA", map[string]any{"PK": "other"})
	assert.Error(t, err)
}

func testQueryIndex(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, room := range []string{"101", "102", "101"} {
		require.NoError(t, s.Put(ctx, store.Record{
			"PK":     fmt.Sprintf("RESERVATION#%d", i),
			"SK":     "METADATA",
			"GSI4PK": "ROOM#" + room,
			"GSI4SK": fmt.Sprintf("RESERVATION#%d", i),
		}))
	}
	require.NoError(t, s.Put(ctx, store.Record{"PK": "RESERVATION#0", "SK": "PERSON#001"}))
	require.NoError(t, s.Put(ctx, store.Record{"PK": "RESERVATION#0", "SK": "PERSON#002"}))

	items, err := store.QueryAll(ctx, s, store.Query{Index: store.IndexGSI4, Partition: "ROOM#101"})
	require.NoError(t, err)
	assert.Equal(t, []string{"RESERVATION#0", "RESERVATION#2"}, pks(items))

	items, err = store.QueryAll(ctx, s, store.Query{Partition: "RESERVATION#0", SortPrefix: "PERSON#"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "PERSON#001", items[0].SK())
	assert.Equal(t, "PERSON#002", items[1].SK())

	_, err = s.QueryIndex(ctx, store.Query{Index: "GSI9", Partition: "x"})
	assert.ErrorIs(t, err, store.ErrInvalidQuery)
}

func testPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, s.Put(ctx, store.Record{
			"PK":     fmt.Sprintf("ITEM#%02d", i),
			"SK":     "METADATA",
			"GSI1PK": "ALL",
			"GSI1SK": fmt.Sprintf("ITEM#%02d", i),
			"Even":   i%2 == 0,
		}))
	}

	q := store.Query{Index: store.IndexGSI1, Partition: "ALL", Limit: 4, Filter: store.Eq("Even", true)}
	first, err := s.QueryIndex(ctx, q)
	require.NoError(t, err)
	require.NotNil(t, first.Next, "first page must signal more")

	items, err := store.QueryAll(ctx, s, q)
	require.NoError(t, err)
	assert.Len(t, items, 13)

	scanned, err := store.ScanAll(ctx, s, store.ScanQuery{Limit: 7})
	require.NoError(t, err)
	assert.Len(t, scanned, 25)
	seen := map[string]bool{}
	for _, r := range scanned {
		assert.False(t, seen[r.PK()], "duplicate %s", r.PK())
		seen[r.PK()] = true
	}
}

func testFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	rows := []store.Record{
		{"PK": "R#1", "SK": "M", "HotelId": "loc1", "CheckInDate": "2024-01-15", "CheckOutDate": "2024-01-18", "IsDeleted": false, "Rank": 1},
		{"PK": "R#2", "SK": "M", "HotelId": "loc1", "CheckInDate": "2024-01-18", "CheckOutDate": "2024-01-20", "IsDeleted": true, "Rank": 2},
		{"PK": "R#3", "SK": "M", "HotelId": "loc2", "CheckInDate": "2024-01-10", "CheckOutDate": "2024-01-16", "Rank": 10},
		{"PK": "R#4", "SK": "M", "HotelId": "loc1", "CheckInDate": "2024-02-01", "CheckOutDate": "2024-02-03", "Rank": "high"},
	}
	for _, r := range rows {
		require.NoError(t, s.Put(ctx, r))
	}

	cases := []struct {
		name   string
		filter *store.Filter
		want   []string
	}{
		{"Eq", store.Eq("HotelId", "loc1"), []string{"R#1", "R#2", "R#4"}},
		{"NeMissing", store.Ne("IsDeleted", true), []string{"R#1", "R#3", "R#4"}},
		{"NotTrue", store.NotTrue("IsDeleted"), []string{"R#1", "R#3", "R#4"}},
		{"Exists", store.Exists("IsDeleted"), []string{"R#1", "R#2"}},
		{"Overlap", store.And(
			store.Lt("CheckInDate", "2024-01-18"),
			store.Gt("CheckOutDate", "2024-01-16"),
		), []string{"R#1"}},
		{"Between", store.Between("CheckOutDate", "2024-01-16", "2024-01-18"), []string{"R#1", "R#3"}},
		{"Or", store.Or(store.Eq("HotelId", "loc2"), store.Ge("CheckInDate", "2024-02-01")), []string{"R#3", "R#4"}},
		{"NumericNotLexical", store.Gt("Rank", 2), []string{"R#3"}},
		{"MixedKinds", store.Lt("Rank", "z"), []string{"R#4"}},
		{"EmptyAnd", store.And(), []string{"R#1", "R#2", "R#3", "R#4"}},
		{"EmptyOr", store.Or(), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := store.ScanAll(ctx, s, store.ScanQuery{Filter: tc.filter})
			require.NoError(t, err)
			assert.Equal(t, tc.want, sortedPKs(items), tc.filter.String())
		})
	}

	_, err := s.Scan(ctx, store.ScanQuery{Filter: store.Eq("bad name; DROP", "x")})
	assert.ErrorIs(t, err, store.ErrInvalidQuery)
}

func testConcurrentPutIfAbsent(t *testing.T, s store.Store) {
	ctx := context.Background()
	const writers = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.PutIfAbsent(ctx, store.Record{"PK": "NIGHT#race", "SK": "CLAIM", "Owner": fmt.Sprint(i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, store.ErrConditionFailed), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func pks(items []store.Record) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.PK())
	}
	return out
}

func sortedPKs(items []store.Record) []string {
	if len(items) == 0 {
		return nil
	}
	out := pks(items)
	sort.Strings(out)
	return out
}
