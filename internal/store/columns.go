package store

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-autoreply-backend/internal/model"
)

// column is one physical column derived from a (possibly nested) field.
type column struct {
	name  string   // physical name, e.g. "kw_c"
	path  []string // storage path, e.g. ["kw", "c"]
	field *model.Field
}

// flatten derives the physical columns of s. Nested model fields expand into
// one column per leaf; everything else maps to a single column.
func flatten(s *model.Schema, prefix []string) []column {
	var out []column
	for _, f := range s.Fields() {
		path := append(append([]string{}, prefix...), f.Key())
		if sub := f.Schema(); sub != nil {
			out = append(out, flatten(sub, path)...)
			continue
		}
		out = append(out, column{name: strings.Join(path, "_"), path: path, field: f})
	}
	return out
}

// sqlType maps a field kind to the column type for the dialect.
func sqlType(k model.Kind, pg bool) string {
	switch k {
	case model.KindInt:
		if pg {
			return "BIGINT"
		}
		return "INTEGER"
	case model.KindFloat:
		if pg {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case model.KindBool:
		return "BOOLEAN"
	case model.KindTime:
		if pg {
			return "TIMESTAMPTZ"
		}
		return "DATETIME"
	}
	return "TEXT"
}

func quote(ident string) string { return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"` }

// columnFor resolves a dotted storage path to its physical column. The
// identifier path "_id" has no field.
func (c *Collection) columnFor(path string) (column, error) {
	if path == model.KeyID {
		return column{name: model.KeyID, path: []string{model.KeyID}}, nil
	}
	name := strings.ReplaceAll(path, ".", "_")
	col, ok := c.byName[name]
	if !ok {
		return column{}, fmt.Errorf("%w: %s.%s", ErrUnknownPath, c.name, path)
	}
	return col, nil
}

// Column returns the quoted physical column for a storage path. Used by
// callers composing aggregations on top of Query.
func (c *Collection) Column(path string) (string, error) {
	col, err := c.columnFor(path)
	if err != nil {
		return "", err
	}
	return quote(col.name), nil
}
