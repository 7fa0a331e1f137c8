package database

import (
	"fmt"
	"strings"

	"hotelbooking/internal/store"
)

// compileFilter turns a filter tree into a SQL condition over the attrs JSON
// document. Type guards keep SQLite's cross-type ordering out of the result,
// so the condition agrees with store.Match.
func compileFilter(f *store.Filter) (string, []any, error) {
	if f == nil {
		return "1", nil, nil
	}
	var args []any
	cond, err := compileNode(f, &args)
	if err != nil {
		return "", nil, err
	}
	return cond, args, nil
}

func compileNode(f *store.Filter, args *[]any) (string, error) {
	switch f.Op {
	case store.OpAnd, store.OpOr:
		if len(f.Children) == 0 {
			if f.Op == store.OpAnd {
				return "1", nil
			}
			return "0", nil
		}
		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			part, err := compileNode(c, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		sep := " AND "
		if f.Op == store.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	}

	path := "$." + f.Attr
	switch f.Op {
	case store.OpNotTrue:
		*args = append(*args, path)
		return "IFNULL(json_type(attrs, ?), '') <> 'true'", nil
	case store.OpExists:
		*args = append(*args, path)
		return "json_type(attrs, ?) IS NOT NULL", nil
	case store.OpEq:
		return equals(path, f.Value, args)
	case store.OpNe:
		cond, err := equals(path, f.Value, args)
		if err != nil {
			return "", err
		}
		return "NOT IFNULL(" + cond + ", 0)", nil
	case store.OpBetween:
		guard, err := typeGuard(path, f.Value, args)
		if err != nil {
			return "", err
		}
		*args = append(*args, path, f.Value, f.Value2)
		return "(" + guard + " AND json_extract(attrs, ?) BETWEEN ? AND ?)", nil
	case store.OpLt, store.OpLe, store.OpGt, store.OpGe:
		guard, err := typeGuard(path, f.Value, args)
		if err != nil {
			return "", err
		}
		*args = append(*args, path, f.Value)
		return fmt.Sprintf("(%s AND json_extract(attrs, ?) %s ?)", guard, f.Op), nil
	}
	return "", fmt.Errorf("%w: unknown filter op %q", store.ErrInvalidQuery, f.Op)
}

func equals(path string, v any, args *[]any) (string, error) {
	if b, ok := v.(bool); ok {
		*args = append(*args, path)
		if b {
			return "IFNULL(json_type(attrs, ?) = 'true', 0)", nil
		}
		return "IFNULL(json_type(attrs, ?) = 'false', 0)", nil
	}
	guard, err := typeGuard(path, v, args)
	if err != nil {
		return "", err
	}
	*args = append(*args, path, v)
	return "(" + guard + " AND json_extract(attrs, ?) = ?)", nil
}

func typeGuard(path string, v any, args *[]any) (string, error) {
	*args = append(*args, path)
	switch v.(type) {
	case string:
		return "IFNULL(json_type(attrs, ?) = 'text', 0)", nil
	case int64, float64:
		return "IFNULL(json_type(attrs, ?) IN ('integer', 'real'), 0)", nil
	}
	return "", fmt.Errorf("%w: unsupported operand %T", store.ErrInvalidQuery, v)
}
