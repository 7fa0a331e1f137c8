package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Record is a flat attribute map. Values are strings, bools, int64 or float64.
type Record map[string]any

func (r Record) PK() string { return r.String(AttrPK) }
func (r Record) SK() string { return r.String(AttrSK) }

func (r Record) EntityType() string { return r.String(AttrEntityType) }

func (r Record) String(attr string) string {
	s, _ := r[attr].(string)
	return s
}

func (r Record) Bool(attr string) bool {
	b, _ := r[attr].(bool)
	return b
}

func (r Record) Int(attr string) int64 {
	switch v := r[attr].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func (r Record) Has(attr string) bool {
	_, ok := r[attr]
	return ok
}

// Clone returns a normalized shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = Normalize(v)
	}
	return out
}

// Validate checks that the record carries a primary key.
func (r Record) Validate() error {
	if r.PK() == "" || r.SK() == "" {
		return fmt.Errorf("%w: record requires %s and %s", ErrInvalidQuery, AttrPK, AttrSK)
	}
	return nil
}

// Normalize converts numeric values to int64 or float64 so that records read
// back from any backend compare equal.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return normalizeFloat(float64(n))
	case float64:
		return normalizeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	}
	return v
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// UnmarshalRecord decodes a JSON object into a normalized Record.
func UnmarshalRecord(data []byte) (Record, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return Record(raw).Clone(), nil
}
