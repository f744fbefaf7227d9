package model

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"unicode/utf8"
)

// Validator is a domain check run on an already cast value.
type Validator func(v any) error

// Field describes one attribute of a Schema: its field name (application
// side), its storage key (document side), its value strategy and its checks.
type Field struct {
	name       string
	key        string
	typ        Type
	def        any
	allowNone  bool
	readOnly   bool
	autoCast   bool
	validators []Validator
}

// Option configures a Field.
type Option func(*Field)

// Default sets the value used when the field is not supplied. Required and
// Optional are accepted as well.
func Default(v any) Option { return func(f *Field) { f.def = v } }

// IsRequired marks the field as Required.
func IsRequired() Option { return Default(Required) }

// IsOptional marks the field as Optional.
func IsOptional() Option { return Default(Optional) }

// AllowNone lets the field hold nil.
func AllowNone() Option { return func(f *Field) { f.allowNone = true } }

// ReadOnly rejects assignments once the model is constructed.
func ReadOnly() Option { return func(f *Field) { f.readOnly = true } }

// NoAutoCast requires inputs to already be of the desired type.
func NoAutoCast() Option { return func(f *Field) { f.autoCast = false } }

// Validate appends a custom domain check.
func Validate(fn Validator) Option {
	return func(f *Field) { f.validators = append(f.validators, fn) }
}

// MaxLength bounds the rune count of text or the length of arrays and dicts.
func MaxLength(n int) Option {
	return Validate(func(v any) error {
		if l := length(v); l > n {
			return fmt.Errorf("length %d exceeds %d", l, n)
		}
		return nil
	})
}

// NotEmpty rejects empty text, arrays and dicts.
func NotEmpty() Option {
	return Validate(func(v any) error {
		if length(v) == 0 {
			return fmt.Errorf("must not be empty")
		}
		return nil
	})
}

// Regex requires text values to match re.
func Regex(re *regexp.Regexp) Option {
	return Validate(func(v any) error {
		s, _ := v.(string)
		if !re.MatchString(s) {
			return fmt.Errorf("does not match %s", re)
		}
		return nil
	})
}

// NonNegative rejects numbers below zero.
func NonNegative() Option {
	return Validate(func(v any) error {
		switch x := v.(type) {
		case int:
			if x < 0 {
				return fmt.Errorf("must be non-negative")
			}
		case float64:
			if x < 0 {
				return fmt.Errorf("must be non-negative")
			}
		}
		return nil
	})
}

// Positive rejects numbers at or below zero.
func Positive() Option {
	return Validate(func(v any) error {
		switch x := v.(type) {
		case int:
			if x <= 0 {
				return fmt.Errorf("must be positive")
			}
		case float64:
			if x <= 0 {
				return fmt.Errorf("must be positive")
			}
		}
		return nil
	})
}

func length(v any) int {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x)
	case []any:
		return len(x)
	case map[string]any:
		return len(x)
	}
	return 0
}

func newField(name, key string, typ Type, opts []Option) *Field {
	f := &Field{name: name, key: key, typ: typ, def: Optional, autoCast: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Text declares a string field.
func Text(name, key string, opts ...Option) *Field {
	return newField(name, key, textType{}, opts)
}

// URL declares a string field holding an absolute http(s) URL. The empty
// string is accepted so the field can stay Optional.
func URL(name, key string, opts ...Option) *Field {
	opts = append([]Option{Validate(checkURL)}, opts...)
	return newField(name, key, textType{}, opts)
}

func checkURL(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Int declares an integer field.
func Int(name, key string, opts ...Option) *Field {
	return newField(name, key, intType{}, opts)
}

// Float declares a floating point field.
func Float(name, key string, opts ...Option) *Field {
	return newField(name, key, floatType{}, opts)
}

// Bool declares a boolean field.
func Bool(name, key string, opts ...Option) *Field {
	return newField(name, key, boolType{}, opts)
}

// DateTime declares a UTC timestamp field.
func DateTime(name, key string, opts ...Option) *Field {
	return newField(name, key, timeType{}, opts)
}

// ObjectID declares an identifier field.
func ObjectID(name, key string, opts ...Option) *Field {
	return newField(name, key, oidType{}, opts)
}

// Enum declares an integer-coded enumeration restricted to values.
func Enum[E ~int](name, key string, values []E, opts ...Option) *Field {
	allowed := make(map[E]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	check := Validate(func(v any) error {
		e, _ := v.(E)
		if _, ok := allowed[e]; !ok {
			return fmt.Errorf("%d is not a member", int(e))
		}
		return nil
	})
	f := newField(name, key, enumType[E]{}, append([]Option{check}, opts...))
	if f.def == Optional && len(values) > 0 {
		f.def = values[0]
	}
	return f
}

// Flag declares an integer bit set restricted to the bits in mask.
func Flag[F ~int](name, key string, mask F, opts ...Option) *Field {
	check := Validate(func(v any) error {
		if x, _ := v.(F); x&^mask != 0 {
			return fmt.Errorf("bits %#x outside %#x", int(x&^mask), int(mask))
		}
		return nil
	})
	return newField(name, key, enumType[F]{}, append([]Option{check}, opts...))
}

// Array declares a list whose elements are processed by elem. Only the type,
// cast and validators of elem matter; its name and key are used in errors.
func Array(name, key string, elem *Field, opts ...Option) *Field {
	return newField(name, key, arrayType{elem: elem}, opts)
}

// Dict declares a string-keyed mapping. elem may be nil for free-form values.
func Dict(name, key string, elem *Field, opts ...Option) *Field {
	return newField(name, key, dictType{elem: elem}, opts)
}

// Nested declares a field holding a model of schema s.
func Nested(name, key string, s *Schema, opts ...Option) *Field {
	return newField(name, key, modelType{schema: s}, opts)
}

// Name returns the application-side field name.
func (f *Field) Name() string { return f.name }

// Key returns the storage key.
func (f *Field) Key() string { return f.key }

// Kind returns the desired value kind.
func (f *Field) Kind() Kind { return f.typ.Kind() }

// IsReadOnly reports whether the field rejects post-construction writes.
func (f *Field) IsReadOnly() bool { return f.readOnly }

// AllowsNone reports whether the field may hold nil.
func (f *Field) AllowsNone() bool { return f.allowNone }

// Required reports whether the field must be supplied at construction.
func (f *Field) Required() bool { return isRequired(f.def) }

// Schema returns the nested schema of a model field, or nil.
func (f *Field) Schema() *Schema {
	if t, ok := f.typ.(modelType); ok {
		return t.schema
	}
	return nil
}

// Elem returns the element field of arrays and dicts, or nil.
func (f *Field) Elem() *Field {
	switch t := f.typ.(type) {
	case arrayType:
		return t.elem
	case dictType:
		return t.elem
	}
	return nil
}

// NoneObj returns the representative empty value.
func (f *Field) NoneObj() any { return f.typ.None() }

// IsEmpty reports whether v is nil or the representative empty value.
func (f *Field) IsEmpty(v any) bool { return v == nil || f.typ.Empty(v) }

// CheckType is the structural check. nil passes only when the field allows it.
func (f *Field) CheckType(v any) error {
	if isNil(v) {
		if f.allowNone {
			return nil
		}
		return fieldErr(f, ErrNoneNotAllowed, v, "")
	}
	if !f.typ.Accepts(v) {
		return fieldErr(f, ErrTypeMismatch, v, "expected %s", f.typ.Kind())
	}
	if !f.autoCast && !f.typ.Desired(v) {
		return fieldErr(f, ErrTypeMismatch, v, "expected %s without conversion", f.typ.Kind())
	}
	return nil
}

// Cast converts an accepted value to the desired type.
func (f *Field) Cast(v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	if !f.autoCast && !f.typ.Desired(v) {
		return nil, fieldErr(f, ErrCastingFailed, v, "auto cast disabled")
	}
	out, err := f.typ.Cast(v)
	if err != nil {
		if isModelError(err) {
			return nil, err
		}
		return nil, fieldErr(f, ErrCastingFailed, v, "%v", err)
	}
	return out, nil
}

// CheckValid runs the domain validators on a cast value.
func (f *Field) CheckValid(v any) error {
	if v == nil {
		if f.allowNone {
			return nil
		}
		return fieldErr(f, ErrNoneNotAllowed, v, "")
	}
	for _, check := range f.validators {
		if err := check(v); err != nil {
			return fieldErr(f, ErrValueInvalid, v, "%v", err)
		}
	}
	return nil
}

// Process runs the type check, the cast and the validity check in order and
// returns the value to store.
func (f *Field) Process(v any) (any, error) {
	if err := f.CheckType(v); err != nil {
		return nil, err
	}
	out, err := f.Cast(v)
	if err != nil {
		return nil, err
	}
	if err := f.CheckValid(out); err != nil {
		return nil, err
	}
	return out, nil
}

// defaultValue resolves the value used for an unsupplied field. ok is false
// for Required fields.
func (f *Field) defaultValue() (v any, ok bool) {
	switch {
	case isRequired(f.def):
		return nil, false
	case isOptional(f.def):
		return f.typ.None(), true
	case f.def == nil:
		return nil, true
	}
	out, err := f.Cast(f.def)
	if err != nil {
		panic(fmt.Sprintf("model: default of field %q: %v", f.name, err))
	}
	return out, true
}

// defaultEmpty reports whether the effective default is empty, which is what
// allows ToJSON to elide the field.
func (f *Field) defaultEmpty() bool {
	if isRequired(f.def) {
		return false
	}
	v, _ := f.defaultValue()
	return f.IsEmpty(v)
}

// Encode returns the persisted representation of a cast value.
func (f *Field) Encode(v any) any { return f.encode(v, true) }

func (f *Field) encode(v any, full bool) any {
	if v == nil {
		return nil
	}
	return f.typ.Encode(v, full)
}

// isModelError reports whether err already carries a field or construction
// kind, as produced by element fields and nested models.
func isModelError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) ||
		errors.Is(err, ErrRequiredKeyNotFilled) ||
		errors.Is(err, ErrFieldKeyNotExist) ||
		errors.Is(err, ErrInvalidModel)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
