package model

import (
	"encoding/json"
	"hash/fnv"
	"maps"
	"time"

	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// Model is one validated record of a Schema.
//
// Values are stored by field name in their desired Go representation:
// string, int, float64, bool, time.Time (UTC), oid.ID, the enum or flag
// type, []any, map[string]any or *Model.
type Model struct {
	schema *Schema
	id     oid.ID
	values map[string]any
	built  bool
}

// Schema returns the schema the model was built from.
func (m *Model) Schema() *Schema { return m.schema }

// ID returns the identifier, or oid.Nil before the model is stored.
func (m *Model) ID() oid.ID { return m.id }

// HasID reports whether an identifier is attached.
func (m *Model) HasID() bool { return !m.id.IsZero() }

// SetID attaches an identifier. Used by the store after an insert.
func (m *Model) SetID(id oid.ID) { m.id = id }

// Get returns the value of the named field, or nil for unknown names.
func (m *Model) Get(name string) any { return m.values[name] }

// Set assigns a field after construction. Read-only fields are rejected and
// the validity check is re-run; on failure the previous value is kept.
func (m *Model) Set(name string, v any) error {
	f, ok := m.schema.byName[name]
	if !ok {
		return &FieldKeyNotExistError{Model: m.schema.Name, Key: name}
	}
	if f.readOnly && m.built {
		return &InvalidModelFieldError{Model: m.schema.Name, Inner: fieldErr(f, ErrReadOnly, v, "")}
	}
	prev, had := m.values[name]
	if err := m.assign(f, v); err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		if had {
			m.values[name] = prev
		} else {
			delete(m.values, name)
		}
		return err
	}
	return nil
}

// Delete always fails: fields can be reset but never removed.
func (m *Model) Delete(string) error { return ErrKeyDeletion }

// ToJSON renders the storage-keyed form, eliding fields that hold an empty
// value when their default is empty too and they are not Required.
func (m *Model) ToJSON() Document {
	doc := make(Document, len(m.schema.fields)+1)
	if m.HasID() {
		doc[KeyID] = m.id.Hex()
	}
	for _, f := range m.schema.fields {
		v := m.values[f.name]
		if f.IsEmpty(v) && f.defaultEmpty() && !f.Required() {
			continue
		}
		doc[f.key] = f.encode(v, false)
	}
	return doc
}

// ToDocument renders every field. This is the persisted form.
func (m *Model) ToDocument() Document {
	doc := make(Document, len(m.schema.fields)+1)
	if m.HasID() {
		doc[KeyID] = m.id.Hex()
	}
	for _, f := range m.schema.fields {
		doc[f.key] = f.encode(m.values[f.name], true)
	}
	return doc
}

// Fingerprint is the canonical serialised form used for equality.
func (m *Model) Fingerprint() string {
	b, err := json.Marshal(m.ToDocument())
	if err != nil {
		return ""
	}
	return m.schema.Name + ":" + string(b)
}

// Equal compares schema and serialised form.
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.schema == o.schema && m.Fingerprint() == o.Fingerprint()
}

// Hash is consistent with Equal.
func (m *Model) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.Fingerprint()))
	return h.Sum64()
}

// Clone returns a deep copy that shares nothing mutable with m.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	c := &Model{schema: m.schema, id: m.id, values: make(map[string]any, len(m.values)), built: m.built}
	for k, v := range m.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

// String returns the named text field.
func (m *Model) String(name string) string { s, _ := m.values[name].(string); return s }

// Int returns the named integer field.
func (m *Model) Int(name string) int { n, _ := m.values[name].(int); return n }

// Float returns the named float field.
func (m *Model) Float(name string) float64 { f, _ := m.values[name].(float64); return f }

// Bool returns the named boolean field.
func (m *Model) Bool(name string) bool { b, _ := m.values[name].(bool); return b }

// Time returns the named timestamp field.
func (m *Model) Time(name string) time.Time { t, _ := m.values[name].(time.Time); return t }

// OID returns the named identifier field.
func (m *Model) OID(name string) oid.ID { id, _ := m.values[name].(oid.ID); return id }

// Nested returns the named nested model, or nil.
func (m *Model) Nested(name string) *Model { n, _ := m.values[name].(*Model); return n }

// List returns the named array field.
func (m *Model) List(name string) []any { xs, _ := m.values[name].([]any); return xs }

// Map returns the named dict field.
func (m *Model) Map(name string) map[string]any { d, _ := m.values[name].(map[string]any); return d }

// Value returns the named field as T, or the zero T.
func Value[T any](m *Model, name string) T {
	v, _ := m.values[name].(T)
	return v
}

// ListOf returns the named array field with every element asserted to T.
// Elements of another type are skipped.
func ListOf[T any](m *Model, name string) []T {
	xs := m.List(name)
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		if t, ok := x.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func (m *Model) assign(f *Field, v any) error {
	out, err := f.Process(v)
	if err != nil {
		return &InvalidModelFieldError{Model: m.schema.Name, Inner: err}
	}
	m.values[f.name] = out
	return nil
}

func (m *Model) assignID(v any) error {
	out, err := oidType{}.Cast(v)
	if err != nil {
		return &InvalidModelFieldError{
			Model: m.schema.Name,
			Inner: &FieldError{Field: KeyID, Kind: ErrCastingFailed, Value: v, Reason: err.Error()},
		}
	}
	m.id = out.(oid.ID)
	return nil
}

// finish fills defaults, reports missing Required fields and runs the
// validity check.
func (m *Model) finish() error {
	var missing []string
	for _, f := range m.schema.fields {
		if _, ok := m.values[f.name]; ok {
			continue
		}
		v, ok := f.defaultValue()
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		m.values[f.name] = v
	}
	if len(missing) > 0 {
		return &RequiredKeyNotFilledError{Model: m.schema.Name, Keys: missing}
	}
	if err := m.validate(); err != nil {
		return err
	}
	m.built = true
	return nil
}

func (m *Model) validate() error {
	if m.schema.Validity == nil {
		return nil
	}
	r := m.schema.Validity(m)
	if r == ValidityOK {
		return nil
	}
	if m.schema.OnInvalid != nil {
		return m.schema.OnInvalid(m, r)
	}
	return &InvalidModelError{Model: m.schema.Name, Result: r}
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := maps.Clone(x)
		for k, e := range out {
			out[k] = cloneValue(e)
		}
		return out
	case *Model:
		return x.Clone()
	}
	return v
}
