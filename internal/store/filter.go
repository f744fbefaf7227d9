package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// Filter is a predicate over a collection, addressed by storage paths such
// as "ch" or "kw.c". Values are encoded through the schema field at the path,
// so callers pass application values (oid.ID, enums, time.Time, ...).
type Filter interface {
	sql(c *Collection) (string, []any, error)
}

type cond struct {
	path string
	op   string
	val  any
}

// Eq matches documents whose value at path equals v.
func Eq(path string, v any) Filter { return cond{path, "=", v} }

// Ne matches documents whose value at path differs from v. NULLs match.
func Ne(path string, v any) Filter { return cond{path, "<>", v} }

// Gt, Gte, Lt and Lte compare the value at path with v.
func Gt(path string, v any) Filter { return cond{path, ">", v} }
func Gte(path string, v any) Filter { return cond{path, ">=", v} }
func Lt(path string, v any) Filter { return cond{path, "<", v} }
func Lte(path string, v any) Filter { return cond{path, "<=", v} }

// IsNull matches documents without a value at path.
func IsNull(path string) Filter { return cond{path, "IS NULL", nil} }

// NotNull matches documents with a value at path.
func NotNull(path string) Filter { return cond{path, "IS NOT NULL", nil} }

// Contains matches array fields holding an element equal to v.
func Contains(path string, v any) Filter { return cond{path, "CONTAINS", v} }

func (f cond) sql(c *Collection) (string, []any, error) {
	col, err := c.columnFor(f.path)
	if err != nil {
		return "", nil, err
	}
	q := quote(col.name)
	switch f.op {
	case "IS NULL", "IS NOT NULL":
		return q + " " + f.op, nil, nil
	case "CONTAINS":
		elem := col.field.Elem()
		if col.field.Kind() != model.KindArray || elem == nil {
			return "", nil, fmt.Errorf("store: %s is not an array", f.path)
		}
		v, err := encodeFilterValue(elem, f.val)
		if err != nil {
			return "", nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
		}
		return q + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(string(b)) + "%"}, nil
	}
	v, err := encodeFilterValue(col.field, f.val)
	if err != nil {
		return "", nil, err
	}
	if v == nil {
		if f.op == "=" {
			return q + " IS NULL", nil, nil
		}
		if f.op == "<>" {
			return q + " IS NOT NULL", nil, nil
		}
	}
	if f.op == "<>" {
		return "(" + q + " <> ? OR " + q + " IS NULL)", []any{v}, nil
	}
	return q + " " + f.op + " ?", []any{v}, nil
}

type inCond struct {
	path string
	vals []any
	not  bool
}

// In matches documents whose value at path is one of vals. An empty list
// matches nothing.
func In(path string, vals ...any) Filter { return inCond{path: path, vals: vals} }

// Nin matches documents whose value at path is none of vals.
func Nin(path string, vals ...any) Filter { return inCond{path: path, vals: vals, not: true} }

func (f inCond) sql(c *Collection) (string, []any, error) {
	if len(f.vals) == 0 {
		if f.not {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}
	col, err := c.columnFor(f.path)
	if err != nil {
		return "", nil, err
	}
	args := make([]any, 0, len(f.vals))
	for _, v := range f.vals {
		ev, err := encodeFilterValue(col.field, v)
		if err != nil {
			return "", nil, err
		}
		args = append(args, ev)
	}
	op := " IN "
	if f.not {
		op = " NOT IN "
	}
	return quote(col.name) + op + "(" + strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ") + ")", args, nil
}

type group struct {
	op    string
	parts []Filter
}

// And matches documents satisfying every filter. nil entries are skipped.
func And(fs ...Filter) Filter { return group{op: " AND ", parts: fs} }

// Or matches documents satisfying any filter.
func Or(fs ...Filter) Filter { return group{op: " OR ", parts: fs} }

func (g group) sql(c *Collection) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, p := range g.parts {
		if p == nil {
			continue
		}
		s, a, err := p.sql(c)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "("+s+")")
		args = append(args, a...)
	}
	if len(clauses) == 0 {
		if g.op == " OR " {
			return "1 = 0", nil, nil
		}
		return "1 = 1", nil, nil
	}
	return strings.Join(clauses, g.op), args, nil
}

// All matches every document.
func All() Filter { return group{op: " AND "} }

// ByID matches the document with identifier id.
func ByID(id oid.ID) Filter { return Eq(model.KeyID, id) }

// encodeFilterValue casts v through field and returns the driver value. A nil
// field means the identifier column.
func encodeFilterValue(field *model.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if field == nil {
		switch x := v.(type) {
		case oid.ID:
			return x.Hex(), nil
		case string:
			return x, nil
		}
		return nil, fmt.Errorf("%w: identifier filter value %T", model.ErrTypeMismatch, v)
	}
	if err := field.CheckType(v); err != nil {
		return nil, err
	}
	x, err := field.Cast(v)
	if err != nil {
		return nil, err
	}
	return encodeValue(field.Encode(x))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func where(c *Collection, f Filter) (string, []any, error) {
	if f == nil {
		return "1 = 1", nil, nil
	}
	return f.sql(c)
}
