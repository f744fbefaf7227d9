package model

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// Kind classifies the desired Go representation of a field value.
type Kind int

const (
	KindText Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindTime
	KindOID
	KindArray
	KindDict
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "datetime"
	case KindOID:
		return "oid"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindModel:
		return "model"
	}
	return "unknown"
}

// Type is the value strategy behind a Field.
//
// Accepts is the structural check over every input the field tolerates,
// Desired narrows it to inputs that need no conversion. Cast must accept any
// value for which Accepts is true and return a Desired value.
type Type interface {
	Kind() Kind
	Accepts(v any) bool
	Desired(v any) bool
	Cast(v any) (any, error)
	None() any
	Empty(v any) bool
	// Encode returns the storage representation of a Desired value. full is
	// false when rendering the elided JSON form of nested models.
	Encode(v any, full bool) any
}

// ---- text ----

type textType struct{}

func (textType) Kind() Kind { return KindText }

func (textType) Accepts(v any) bool {
	switch v.(type) {
	case string, []byte, json.Number, fmt.Stringer:
		return true
	}
	return isNumber(v)
}

func (textType) Desired(v any) bool { _, ok := v.(string); return ok }

func (textType) Cast(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case json.Number:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	if n, ok := exactInt(v); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return nil, fmt.Errorf("cannot render %T as text", v)
}

func (textType) None() any { return "" }
func (textType) Empty(v any) bool { s, _ := v.(string); return s == "" }
func (textType) Encode(v any, _ bool) any { return v }

// ---- int ----

type intType struct{}

func (intType) Kind() Kind { return KindInt }

func (intType) Accepts(v any) bool {
	switch v.(type) {
	case string, json.Number:
		return true
	}
	return isNumber(v)
}

func (intType) Desired(v any) bool { _, ok := v.(int); return ok }

func (intType) Cast(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return int(n), nil
}

func (intType) None() any { return 0 }
func (intType) Empty(v any) bool { n, _ := v.(int); return n == 0 }
func (intType) Encode(v any, _ bool) any { return v }

// ---- float ----

type floatType struct{}

func (floatType) Kind() Kind { return KindFloat }

func (floatType) Accepts(v any) bool {
	switch v.(type) {
	case string, json.Number:
		return true
	}
	return isNumber(v)
}

func (floatType) Desired(v any) bool { _, ok := v.(float64); return ok }

func (floatType) Cast(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	if n, ok := exactInt(v); ok {
		return float64(n), nil
	}
	return nil, fmt.Errorf("cannot convert %T to float", v)
}

func (floatType) None() any { return 0.0 }
func (floatType) Empty(v any) bool { f, _ := v.(float64); return f == 0 }
func (floatType) Encode(v any, _ bool) any { return v }

// ---- bool ----

type boolType struct{}

func (boolType) Kind() Kind { return KindBool }

func (boolType) Accepts(v any) bool {
	switch v.(type) {
	case bool, string:
		return true
	}
	_, ok := exactInt(v)
	return ok
}

func (boolType) Desired(v any) bool { _, ok := v.(bool); return ok }

func (boolType) Cast(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	}
	n, _ := exactInt(v)
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return nil, fmt.Errorf("integer %d is not a boolean", n)
}

func (boolType) None() any { return false }
func (boolType) Empty(v any) bool { b, _ := v.(bool); return !b }
func (boolType) Encode(v any, _ bool) any { return v }

// ---- datetime ----

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type timeType struct{}

func (timeType) Kind() Kind { return KindTime }

func (timeType) Accepts(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time, string:
		return true
	}
	_, ok := exactInt(v)
	return ok
}

func (timeType) Desired(v any) bool { _, ok := v.(time.Time); return ok }

// Cast re-attaches UTC. Integers are unix milliseconds.
func (timeType) Cast(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, nil
		}
		return x.UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("unrecognised time format %q", x)
	}
	ms, _ := exactInt(v)
	return time.UnixMilli(ms).UTC(), nil
}

func (timeType) None() any { return time.Time{} }
func (timeType) Empty(v any) bool { t, _ := v.(time.Time); return t.IsZero() }
func (timeType) Encode(v any, _ bool) any { return v }

// ---- object id ----

type oidType struct{}

func (oidType) Kind() Kind { return KindOID }

func (oidType) Accepts(v any) bool {
	switch v.(type) {
	case oid.ID, string, [12]byte:
		return true
	}
	return false
}

func (oidType) Desired(v any) bool { _, ok := v.(oid.ID); return ok }

func (oidType) Cast(v any) (any, error) {
	switch x := v.(type) {
	case oid.ID:
		return x, nil
	case [12]byte:
		return oid.ID(x), nil
	case string:
		if x == "" {
			return oid.Nil, nil
		}
		return oid.Parse(x)
	}
	return nil, fmt.Errorf("cannot convert %T to object id", v)
}

func (oidType) None() any { return oid.Nil }
func (oidType) Empty(v any) bool { id, _ := v.(oid.ID); return id.IsZero() }

// Encode renders the 24-character hex form, which sorts by creation time.
func (oidType) Encode(v any, _ bool) any {
	id, _ := v.(oid.ID)
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}

// ---- enum ----

type enumType[E ~int] struct{}

func (enumType[E]) Kind() Kind { return KindInt }

func (enumType[E]) Accepts(v any) bool {
	switch v.(type) {
	case E, string, json.Number:
		return true
	}
	return isNumber(v)
}

func (enumType[E]) Desired(v any) bool { _, ok := v.(E); return ok }

func (enumType[E]) Cast(v any) (any, error) {
	if e, ok := v.(E); ok {
		return e, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return E(n), nil
}

func (enumType[E]) None() any { var z E; return z }
func (enumType[E]) Empty(v any) bool { e, _ := v.(E); return e == 0 }
func (enumType[E]) Encode(v any, _ bool) any { e, _ := v.(E); return int(e) }

// ---- array ----

type arrayType struct {
	elem *Field
}

func (arrayType) Kind() Kind { return KindArray }

func (arrayType) Accepts(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8
}

func (t arrayType) Desired(v any) bool {
	xs, ok := v.([]any)
	if !ok {
		return false
	}
	for _, x := range xs {
		if !t.elem.typ.Desired(x) {
			return false
		}
	}
	return true
}

// Cast runs every element through the element field, so element errors keep
// their own kind.
func (t arrayType) Cast(v any) (any, error) {
	rv := reflect.ValueOf(v)
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		x, err := t.elem.Process(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func (arrayType) None() any { return []any{} }
func (arrayType) Empty(v any) bool { xs, _ := v.([]any); return len(xs) == 0 }

func (t arrayType) Encode(v any, full bool) any {
	xs, _ := v.([]any)
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = t.elem.encode(x, full)
	}
	return out
}

// ---- dict ----

type dictType struct {
	elem *Field
}

func (dictType) Kind() Kind { return KindDict }

func (dictType) Accepts(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

func (t dictType) Desired(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if t.elem == nil {
		return true
	}
	for _, x := range m {
		if !t.elem.typ.Desired(x) {
			return false
		}
	}
	return true
}

func (t dictType) Cast(v any) (any, error) {
	rv := reflect.ValueOf(v)
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		x := iter.Value().Interface()
		if t.elem != nil {
			var err error
			if x, err = t.elem.Process(x); err != nil {
				return nil, err
			}
		}
		out[k] = x
	}
	return out, nil
}

func (dictType) None() any { return map[string]any{} }
func (dictType) Empty(v any) bool { m, _ := v.(map[string]any); return len(m) == 0 }

func (t dictType) Encode(v any, full bool) any {
	m, _ := v.(map[string]any)
	out := make(map[string]any, len(m))
	for k, x := range m {
		if t.elem != nil {
			x = t.elem.encode(x, full)
		}
		out[k] = x
	}
	return out
}

// ---- nested model ----

type modelType struct {
	schema *Schema
}

func (modelType) Kind() Kind { return KindModel }

func (t modelType) Accepts(v any) bool {
	switch x := v.(type) {
	case *Model:
		return x != nil && x.schema == t.schema
	case Document, Values, map[string]any:
		return true
	}
	return false
}

func (t modelType) Desired(v any) bool {
	m, ok := v.(*Model)
	return ok && m != nil && m.schema == t.schema
}

func (t modelType) Cast(v any) (any, error) {
	switch x := v.(type) {
	case *Model:
		return x, nil
	case Values:
		return t.schema.FromApp(x)
	case Document:
		return t.schema.FromStorage(x)
	case map[string]any:
		return t.schema.FromStorage(Document(x))
	}
	return nil, fmt.Errorf("%w: %T to %s", ErrUncastable, v, t.schema.Name)
}

func (modelType) None() any { return (*Model)(nil) }

func (modelType) Empty(v any) bool {
	m, _ := v.(*Model)
	return m == nil
}

func (modelType) Encode(v any, full bool) any {
	m, _ := v.(*Model)
	if m == nil {
		return nil
	}
	if full {
		return map[string]any(m.ToDocument())
	}
	return map[string]any(m.ToJSON())
}

// ---- numeric helpers ----

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// exactInt returns v as int64 when v is a Go integer.
func exactInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// toInt64 converts numbers and numeric strings. Floats must be integral.
func toInt64(v any) (int64, error) {
	if n, ok := exactInt(v); ok {
		return n, nil
	}
	var f float64
	switch x := v.(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, err
		}
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not integral", f)
	}
	return int64(f), nil
}
