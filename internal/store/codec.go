package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tbourn/go-autoreply-backend/internal/model"
)

// encodeRow turns a full document into column values in column order. The
// identifier comes first.
func (c *Collection) encodeRow(doc model.Document) ([]string, []any, error) {
	names := make([]string, 0, len(c.cols)+1)
	vals := make([]any, 0, len(c.cols)+1)
	names = append(names, model.KeyID)
	vals = append(vals, doc[model.KeyID])
	for _, col := range c.cols {
		v, err := encodeValue(lookup(doc, col.path))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotSerializable, col.name, err)
		}
		names = append(names, col.name)
		vals = append(vals, v)
	}
	return names, vals, nil
}

// encodeValue maps an encoded document value to a driver value.
func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case time.Time:
		return x.UTC(), nil
	case int:
		return int64(x), nil
	}
	return v, nil
}

func lookup(doc map[string]any, path []string) any {
	var cur any = doc
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			if d, isDoc := cur.(model.Document); isDoc {
				m = d
			} else {
				return nil
			}
		}
		cur = m[p]
	}
	return cur
}

// decodeRow rebuilds a storage document from a scanned row. NULL columns are
// dropped so the field defaults apply, and JSON columns are parsed back.
func (c *Collection) decodeRow(row map[string]any) (model.Document, error) {
	doc := model.Document{}
	if id := row[model.KeyID]; id != nil {
		doc[model.KeyID] = asText(id)
	}
	for _, col := range c.cols {
		v := row[col.name]
		if v == nil {
			continue
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if k := col.field.Kind(); k == model.KindArray || k == model.KindDict {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: column %s holds %T", ErrNotSerializable, col.name, v)
			}
			parsed, err := decodeJSON(s)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s: %v", ErrNotSerializable, col.name, err)
			}
			v = parsed
		}
		place(doc, col.path, v)
	}
	return doc, nil
}

func place(doc model.Document, path []string, v any) {
	var cur map[string]any = doc
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers turns json.Number into int64 when integral and float64
// otherwise, so free-form dict values keep their numeric shape.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
	}
	return v
}

func asText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
