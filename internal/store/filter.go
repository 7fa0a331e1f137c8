package store

import (
	"fmt"
	"regexp"
	"strings"
)

type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "<>"
	OpLt      Op = "<"
	OpLe      Op = "<="
	OpGt      Op = ">"
	OpGe      Op = ">="
	OpBetween Op = "between"
	OpNotTrue Op = "not_true"
	OpExists  Op = "exists"
	OpAnd     Op = "and"
	OpOr      Op = "or"
)

// Filter is a boolean predicate over record attributes, evaluated by the
// store before records are returned. Strings compare lexicographically,
// numbers numerically, booleans by equality only. A comparison between
// values of different kinds is false (true for Ne), as is any comparison
// against a missing attribute.
type Filter struct {
	Op       Op
	Attr     string
	Value    any
	Value2   any
	Children []*Filter
}

func Eq(attr string, v any) *Filter { return &Filter{Op: OpEq, Attr: attr, Value: Normalize(v)} }
func Ne(attr string, v any) *Filter { return &Filter{Op: OpNe, Attr: attr, Value: Normalize(v)} }
func Lt(attr string, v any) *Filter { return &Filter{Op: OpLt, Attr: attr, Value: Normalize(v)} }
func Le(attr string, v any) *Filter { return &Filter{Op: OpLe, Attr: attr, Value: Normalize(v)} }
func Gt(attr string, v any) *Filter { return &Filter{Op: OpGt, Attr: attr, Value: Normalize(v)} }
func Ge(attr string, v any) *Filter { return &Filter{Op: OpGe, Attr: attr, Value: Normalize(v)} }

// Between is inclusive on both ends.
func Between(attr string, lo, hi any) *Filter {
	return &Filter{Op: OpBetween, Attr: attr, Value: Normalize(lo), Value2: Normalize(hi)}
}

// NotTrue matches records where attr is absent or not the boolean true.
func NotTrue(attr string) *Filter { return &Filter{Op: OpNotTrue, Attr: attr} }

func Exists(attr string) *Filter { return &Filter{Op: OpExists, Attr: attr} }

// And drops nil operands. And() with no operands matches everything.
func And(fs ...*Filter) *Filter { return group(OpAnd, fs) }

// Or drops nil operands. Or() with no operands matches nothing.
func Or(fs ...*Filter) *Filter { return group(OpOr, fs) }

func group(op Op, fs []*Filter) *Filter {
	children := make([]*Filter, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			children = append(children, f)
		}
	}
	return &Filter{Op: op, Children: children}
}

var attrNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate rejects unknown operators, malformed attribute names and
// unsupported operand types.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	switch f.Op {
	case OpAnd, OpOr:
		for _, c := range f.Children {
			if err := c.Validate(); err != nil {
				return err
			}
		}
		return nil
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpBetween, OpNotTrue, OpExists:
	default:
		return fmt.Errorf("%w: unknown filter op %q", ErrInvalidQuery, f.Op)
	}
	if !attrNameRe.MatchString(f.Attr) {
		return fmt.Errorf("%w: bad attribute name %q", ErrInvalidQuery, f.Attr)
	}
	switch f.Op {
	case OpNotTrue, OpExists:
		return nil
	case OpBetween:
		if k := kindOf(f.Value); (k != kindString && k != kindNumber) || k != kindOf(f.Value2) {
			return fmt.Errorf("%w: between on %s needs two operands of one kind", ErrInvalidQuery, f.Attr)
		}
		return nil
	case OpLt, OpLe, OpGt, OpGe:
		if k := kindOf(f.Value); k != kindString && k != kindNumber {
			return fmt.Errorf("%w: ordering on %s needs a string or number", ErrInvalidQuery, f.Attr)
		}
		return nil
	}
	if kindOf(f.Value) == kindOther {
		return fmt.Errorf("%w: unsupported operand %T for %s", ErrInvalidQuery, f.Value, f.Attr)
	}
	return nil
}

func (f *Filter) String() string {
	if f == nil {
		return "<all>"
	}
	switch f.Op {
	case OpAnd, OpOr:
		parts := make([]string, len(f.Children))
		for i, c := range f.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(string(f.Op))+" ") + ")"
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN %v AND %v", f.Attr, f.Value, f.Value2)
	case OpNotTrue:
		return fmt.Sprintf("%s IS NOT TRUE", f.Attr)
	case OpExists:
		return fmt.Sprintf("EXISTS(%s)", f.Attr)
	}
	return fmt.Sprintf("%s %s %v", f.Attr, f.Op, f.Value)
}

// Match evaluates f against rec in process. A nil filter matches.
func Match(f *Filter, rec Record) bool {
	if f == nil {
		return true
	}
	switch f.Op {
	case OpAnd:
		for _, c := range f.Children {
			if !Match(c, rec) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.Children {
			if Match(c, rec) {
				return true
			}
		}
		return false
	case OpNotTrue:
		b, ok := rec[f.Attr].(bool)
		return !ok || !b
	case OpExists:
		return rec.Has(f.Attr)
	}

	v, ok := rec[f.Attr]
	if !ok {
		return f.Op == OpNe
	}
	v = Normalize(v)

	switch f.Op {
	case OpEq:
		c, ok := compare(v, f.Value)
		return ok && c == 0
	case OpNe:
		c, ok := compare(v, f.Value)
		return !ok || c != 0
	case OpBetween:
		lo, ok1 := compare(v, f.Value)
		hi, ok2 := compare(v, f.Value2)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	}

	if kindOf(v) == kindBool {
		return false
	}
	c, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

type valueKind int

const (
	kindOther valueKind = iota
	kindString
	kindNumber
	kindBool
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case string:
		return kindString
	case int64, float64:
		return kindNumber
	case bool:
		return kindBool
	}
	return kindOther
}

// compare orders a and b; ok is false when they are of different kinds.
func compare(a, b any) (int, bool) {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb || ka == kindOther {
		return 0, false
	}
	switch ka {
	case kindString:
		return strings.Compare(a.(string), b.(string)), true
	case kindNumber:
		x, y := toFloat(a), toFloat(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case kindBool:
		if a.(bool) == b.(bool) {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
