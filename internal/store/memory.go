package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type recordKey struct {
	pk, sk string
}

// MemoryStore is an in-process Store. Filters are evaluated with Match.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[recordKey]Record),
	}
}

func (m *MemoryStore) Get(ctx context.Context, pk, sk string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordKey{pk, sk}]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[recordKey{rec.PK(), rec.SK()}] = rec.Clone()
	return nil
}

func (m *MemoryStore) PutIfAbsent(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey{rec.PK(), rec.SK()}
	if _, ok := m.records[key]; ok {
		return ErrConditionFailed
	}
	m.records[key] = rec.Clone()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, pk, sk string, attrs map[string]any) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := attrs[AttrPK]; ok {
		return nil, fmt.Errorf("%w: %s is immutable", ErrInvalidQuery, AttrPK)
	}
	if _, ok := attrs[AttrSK]; ok {
		return nil, fmt.Errorf("%w: %s is immutable", ErrInvalidQuery, AttrSK)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey{pk, sk}
	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	next := rec.Clone()
	for k, v := range attrs {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = Normalize(v)
	}
	m.records[key] = next
	return next.Clone(), nil
}

func (m *MemoryStore) DeleteItem(ctx context.Context, pk, sk string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, recordKey{pk, sk})
	return nil
}

func (m *MemoryStore) QueryIndex(ctx context.Context, q Query) (*Page, error) {
	pkAttr, skAttr, err := IndexKeys(q.Index)
	if err != nil {
		return nil, err
	}
	if q.Partition == "" {
		return nil, fmt.Errorf("%w: partition value required", ErrInvalidQuery)
	}
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var candidates []Record
	for _, rec := range m.records {
		if rec.String(pkAttr) != q.Partition {
			continue
		}
		sortKey, ok := rec[skAttr].(string)
		if !ok || !strings.HasPrefix(sortKey, q.SortPrefix) {
			continue
		}
		candidates = append(candidates, rec.Clone())
	}
	m.mu.RUnlock()

	return paginate(candidates, skAttr, q.Filter, q.Limit, q.StartAfter), nil
}

func (m *MemoryStore) Scan(ctx context.Context, q ScanQuery) (*Page, error) {
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	candidates := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		candidates = append(candidates, rec.Clone())
	}
	m.mu.RUnlock()

	return paginate(candidates, "", q.Filter, q.Limit, q.StartAfter), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("memory store is closed")
	}
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cursorOf(rec Record, skAttr string) Cursor {
	c := Cursor{PK: rec.PK(), SK: rec.SK()}
	if skAttr != "" {
		c.IndexSK = rec.String(skAttr)
	}
	return c
}

// Less orders cursors by index sort key, then primary key.
func (c Cursor) Less(o Cursor) bool {
	if c.IndexSK != o.IndexSK {
		return c.IndexSK < o.IndexSK
	}
	if c.PK != o.PK {
		return c.PK < o.PK
	}
	return c.SK < o.SK
}

func paginate(candidates []Record, skAttr string, filter *Filter, limit int, after *Cursor) *Page {
	sort.Slice(candidates, func(i, j int) bool {
		return cursorOf(candidates[i], skAttr).Less(cursorOf(candidates[j], skAttr))
	})

	page := &Page{}
	examined := 0
	for i, rec := range candidates {
		cur := cursorOf(rec, skAttr)
		if after != nil && !after.Less(cur) {
			continue
		}
		if limit > 0 && examined == limit {
			last := cursorOf(candidates[i-1], skAttr)
			page.Next = &last
			return page
		}
		examined++
		if Match(filter, rec) {
			page.Items = append(page.Items, rec)
		}
	}
	return page
}
