package model

import (
	"errors"
	"fmt"
	"strings"
)

// Field-level error kinds. A *FieldError unwraps to exactly one of these.
var (
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrValueInvalid   = errors.New("value invalid")
	ErrCastingFailed  = errors.New("casting failed")
	ErrReadOnly       = errors.New("read-only")
	ErrNoneNotAllowed = errors.New("none not allowed")
)

// Construction-level error kinds.
var (
	ErrRequiredKeyNotFilled = errors.New("required key not filled")
	ErrFieldKeyNotExist     = errors.New("field key not exist")
	ErrJSONKeyNotExist      = errors.New("json key not exist")
	ErrInvalidModel         = errors.New("model invalid")
	ErrIDUnavailable        = errors.New("id not allowed in application construction")
	ErrUncastable           = errors.New("uncastable")
	ErrKeyDeletion          = errors.New("field deletion is not permitted")
)

// FieldError describes a value rejected by a field descriptor.
type FieldError struct {
	Field  string
	Kind   error
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "field %q: %v", e.Field, e.Kind)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	fmt.Fprintf(&b, " (value %T %v)", e.Value, e.Value)
	return b.String()
}

func (e *FieldError) Unwrap() error { return e.Kind }

func fieldErr(f *Field, kind error, v any, format string, args ...any) *FieldError {
	return &FieldError{Field: f.name, Kind: kind, Value: v, Reason: fmt.Sprintf(format, args...)}
}

// InvalidModelFieldError wraps a field error raised while constructing or
// mutating a model.
type InvalidModelFieldError struct {
	Model string
	Inner error
}

func (e *InvalidModelFieldError) Error() string {
	return fmt.Sprintf("model %s: invalid field: %v", e.Model, e.Inner)
}

func (e *InvalidModelFieldError) Unwrap() error { return e.Inner }

// RequiredKeyNotFilledError lists the Required fields that were not supplied.
type RequiredKeyNotFilledError struct {
	Model string
	Keys  []string
}

func (e *RequiredKeyNotFilledError) Error() string {
	return fmt.Sprintf("model %s: required key not filled: %s", e.Model, strings.Join(e.Keys, ", "))
}

func (e *RequiredKeyNotFilledError) Unwrap() error { return ErrRequiredKeyNotFilled }

// FieldKeyNotExistError reports an unknown key. Storage is true when the key
// was a storage (json) key rather than a field name.
type FieldKeyNotExistError struct {
	Model   string
	Key     string
	Storage bool
}

func (e *FieldKeyNotExistError) Error() string {
	if e.Storage {
		return fmt.Sprintf("model %s: json key not exist: %q", e.Model, e.Key)
	}
	return fmt.Sprintf("model %s: field key not exist: %q", e.Model, e.Key)
}

// Unwrap exposes both the coarse kind and the storage/field flavour.
func (e *FieldKeyNotExistError) Unwrap() []error {
	if e.Storage {
		return []error{ErrFieldKeyNotExist, ErrJSONKeyNotExist}
	}
	return []error{ErrFieldKeyNotExist}
}

// InvalidModelError is raised by the default OnInvalid hook when a cross-field
// validity check fails.
type InvalidModelError struct {
	Model  string
	Result ValidityResult
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("model %s invalid: %s", e.Model, e.Result)
}

func (e *InvalidModelError) Unwrap() error { return ErrInvalidModel }

// IDUnavailableError is returned when an application-side construction
// supplies an id for a schema that does not opt in with WithOID.
type IDUnavailableError struct {
	Model string
}

func (e *IDUnavailableError) Error() string {
	return fmt.Sprintf("model %s: id is not accepted from application data", e.Model)
}

func (e *IDUnavailableError) Unwrap() error { return ErrIDUnavailable }
