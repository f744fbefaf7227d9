package model

import (
	"fmt"
	"strings"
)

// KeyID is the storage key of the document identifier.
const KeyID = "_id"

// FieldID is the application-side name accepted for the identifier by
// schemas with WithOID set.
const FieldID = "id"

// Document is a storage-keyed mapping.
type Document map[string]any

// Values is a field-name-keyed mapping.
type Values map[string]any

// ValidityResult is the outcome of a cross-field validity check.
type ValidityResult int

const (
	ValidityOK ValidityResult = iota
	ValidityInvalid
	ValidityContentEmpty
	ValidityContentNotURL
	ValidityContentNotSticker
	ValidityNoIdentity
	ValidityExpiryBeforeCreation
	ValidityReferenceToSelf
)

func (r ValidityResult) String() string {
	switch r {
	case ValidityOK:
		return "ok"
	case ValidityInvalid:
		return "invalid"
	case ValidityContentEmpty:
		return "content empty"
	case ValidityContentNotURL:
		return "content is not a url"
	case ValidityContentNotSticker:
		return "content is not a sticker id"
	case ValidityNoIdentity:
		return "no identity attached"
	case ValidityExpiryBeforeCreation:
		return "expiry precedes creation"
	case ValidityReferenceToSelf:
		return "module references itself"
	}
	return fmt.Sprintf("validity(%d)", int(r))
}

// Schema is a named, ordered set of fields. Schemas are built once at
// package init and are read-only afterwards.
type Schema struct {
	Name string
	// WithOID lets application-side construction supply the identifier.
	WithOID bool
	// Validity runs after construction and after every Set.
	Validity func(m *Model) ValidityResult
	// OnInvalid turns a non-OK validity result into an error. When nil an
	// *InvalidModelError is returned.
	OnInvalid func(m *Model, r ValidityResult) error

	fields []*Field
	byName map[string]*Field
	byKey  map[string]*Field
}

// NewSchema builds a schema. It panics on duplicate names or keys, and on
// fields that use the reserved identifier name or key.
func NewSchema(name string, fields ...*Field) *Schema {
	s := &Schema{
		Name:   name,
		fields: fields,
		byName: make(map[string]*Field, len(fields)),
		byKey:  make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		if f.name == FieldID || f.key == KeyID {
			panic(fmt.Sprintf("model: %s: %q/%q is reserved for the identifier", name, f.name, f.key))
		}
		if _, dup := s.byName[f.name]; dup {
			panic(fmt.Sprintf("model: %s: duplicate field name %q", name, f.name))
		}
		if _, dup := s.byKey[f.key]; dup {
			panic(fmt.Sprintf("model: %s: duplicate storage key %q", name, f.key))
		}
		s.byName[f.name] = f
		s.byKey[f.key] = f
	}
	return s
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []*Field { return s.fields }

// Field looks a field up by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// FieldByKey looks a field up by storage key.
func (s *Schema) FieldByKey(key string) (*Field, bool) {
	f, ok := s.byKey[key]
	return f, ok
}

// FieldByPath resolves a dotted storage path such as "kw.c" through nested
// model fields.
func (s *Schema) FieldByPath(path string) (*Field, bool) {
	cur := s
	parts := strings.Split(path, ".")
	for i, p := range parts {
		f, ok := cur.byKey[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return f, true
		}
		if cur = f.Schema(); cur == nil {
			return nil, false
		}
	}
	return nil, false
}

// FromStorage builds a model from a storage-keyed document. The identifier
// may be present under KeyID.
func (s *Schema) FromStorage(doc Document) (*Model, error) {
	m := s.blank()
	for k, v := range doc {
		if k == KeyID {
			if err := m.assignID(v); err != nil {
				return nil, err
			}
			continue
		}
		f, ok := s.byKey[k]
		if !ok {
			return nil, &FieldKeyNotExistError{Model: s.Name, Key: k, Storage: true}
		}
		if err := m.assign(f, v); err != nil {
			return nil, err
		}
	}
	if err := m.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromApp builds a model from field-name-keyed values. The identifier is
// accepted under FieldID only when WithOID is set.
func (s *Schema) FromApp(vals Values) (*Model, error) {
	m := s.blank()
	for k, v := range vals {
		if k == FieldID {
			if !s.WithOID {
				return nil, &IDUnavailableError{Model: s.Name}
			}
			if err := m.assignID(v); err != nil {
				return nil, err
			}
			continue
		}
		f, ok := s.byName[k]
		if !ok {
			return nil, &FieldKeyNotExistError{Model: s.Name, Key: k}
		}
		if err := m.assign(f, v); err != nil {
			return nil, err
		}
	}
	if err := m.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// GenerateDefault builds a model whose unsupplied fields hold their defaults.
// Required fields must be present in overrides.
func (s *Schema) GenerateDefault(overrides Values) (*Model, error) {
	if overrides == nil {
		overrides = Values{}
	}
	return s.FromApp(overrides)
}

// Cast returns x unchanged when it is a model of this schema and builds one
// from storage when x is a mapping.
func (s *Schema) Cast(x any) (*Model, error) {
	switch v := x.(type) {
	case *Model:
		if v != nil && v.schema == s {
			return v, nil
		}
	case Document:
		return s.FromStorage(v)
	case map[string]any:
		return s.FromStorage(Document(v))
	}
	return nil, fmt.Errorf("%w: %T to %s", ErrUncastable, x, s.Name)
}

func (s *Schema) blank() *Model {
	return &Model{schema: s, values: make(map[string]any, len(s.fields))}
}
