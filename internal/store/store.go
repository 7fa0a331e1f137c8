// Package store defines the single-table record space the booking services
// are built on: records keyed by (PK, SK) with optional secondary index keys.
package store

import (
	"context"
	"errors"
	"fmt"
)

const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrEntityType = "EntityType"
)

// Secondary index names.
const (
	IndexPrimary = ""
	IndexGSI1    = "GSI1"
	IndexGSI2    = "GSI2"
	IndexGSI3    = "GSI3"
	IndexGSI4    = "GSI4"
	IndexGSI5    = "GSI5"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConditionFailed = errors.New("conditional write failed")
	ErrInvalidQuery    = errors.New("invalid query")
)

// Store is the storage collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns ErrNotFound when no record has the given key.
	Get(ctx context.Context, pk, sk string) (Record, error)
	// Put writes the record unconditionally.
	Put(ctx context.Context, rec Record) error
	// PutIfAbsent returns ErrConditionFailed if a record with the same key exists.
	PutIfAbsent(ctx context.Context, rec Record) error
	// Update merges attrs into an existing record and returns the full
	// post-image. A nil value removes the attribute. It never creates records.
	Update(ctx context.Context, pk, sk string, attrs map[string]any) (Record, error)
	QueryIndex(ctx context.Context, q Query) (*Page, error)
	Scan(ctx context.Context, q ScanQuery) (*Page, error)
	// DeleteItem is idempotent.
	DeleteItem(ctx context.Context, pk, sk string) error
	Ping(ctx context.Context) error
	Close() error
}

// Query selects records from one index partition. Limit bounds the size of a
// page; a page may hold fewer items than Limit (even none) while Next is
// still set, so callers must follow Next until it is nil.
type Query struct {
	Index      string
	Partition  string
	SortPrefix string
	Filter     *Filter
	Limit      int
	StartAfter *Cursor
}

type ScanQuery struct {
	Filter     *Filter
	Limit      int
	StartAfter *Cursor
}

// Cursor marks the last record examined by a page.
type Cursor struct {
	IndexSK string `json:"index_sk,omitempty"`
	PK      string `json:"pk"`
	SK      string `json:"sk"`
}

// Page is one slice of a query result. Next is nil on the last page.
type Page struct {
	Items []Record
	Next  *Cursor
}

// IndexKeys returns the partition and sort attribute names of an index.
func IndexKeys(index string) (pkAttr, skAttr string, err error) {
	switch index {
	case IndexPrimary:
		return AttrPK, AttrSK, nil
	case IndexGSI1, IndexGSI2, IndexGSI3, IndexGSI4, IndexGSI5:
		return index + "PK", index + "SK", nil
	default:
		return "", "", fmt.Errorf("%w: unknown index %q", ErrInvalidQuery, index)
	}
}

// QueryAll follows Next cursors until the store reports no more pages.
func QueryAll(ctx context.Context, s Store, q Query) ([]Record, error) {
	var out []Record
	for {
		page, err := s.QueryIndex(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == nil {
			return out, nil
		}
		q.StartAfter = page.Next
	}
}

// ScanAll is QueryAll for full-table scans.
func ScanAll(ctx context.Context, s Store, q ScanQuery) ([]Record, error) {
	var out []Record
	for {
		page, err := s.Scan(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == nil {
			return out, nil
		}
		q.StartAfter = page.Next
	}
}
