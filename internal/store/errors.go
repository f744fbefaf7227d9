package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
)

var (
	// ErrNotFound is returned when an update or delete matched nothing.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrNotSerializable wraps values that cannot be encoded for storage.
	ErrNotSerializable = errors.New("store: value not serializable")
	// ErrUnknownPath is returned for filter or update paths the schema lacks.
	ErrUnknownPath = errors.New("store: unknown path")
	// ErrDuplicate marks a unique constraint violation.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Result is the uniform return of collection writes: the outcome to branch
// on, the model involved (if any) and the underlying error (if any).
type Result struct {
	Outcome outcome.Code
	Model   *model.Model
	Err     error
}

// OK reports whether the outcome is a success.
func (r Result) OK() bool { return r.Outcome.IsSuccess() }

func failed(err error, fallback outcome.Code) Result {
	return Result{Outcome: OutcomeOf(err, fallback), Err: err}
}

// OutcomeOf maps an error from the model or store layer to its outcome code.
// Errors of unknown kind map to fallback.
func OutcomeOf(err error, fallback outcome.Code) outcome.Code {
	switch {
	case err == nil:
		return outcome.OCompleted
	case errors.Is(err, model.ErrTypeMismatch), errors.Is(err, model.ErrNoneNotAllowed):
		return outcome.XTypeMismatch
	case errors.Is(err, model.ErrValueInvalid):
		return outcome.XInvalidField
	case errors.Is(err, model.ErrCastingFailed):
		return outcome.XCastingFailed
	case errors.Is(err, model.ErrReadOnly):
		return outcome.XReadOnly
	case errors.Is(err, model.ErrRequiredKeyNotFilled):
		return outcome.XRequiredNotFilled
	case errors.Is(err, model.ErrFieldKeyNotExist), errors.Is(err, model.ErrIDUnavailable), errors.Is(err, ErrUnknownPath):
		return outcome.XFieldNotExist
	case errors.Is(err, model.ErrInvalidModel):
		return outcome.XInvalidModel
	case errors.Is(err, model.ErrUncastable):
		return outcome.XConstructUnknown
	case errors.Is(err, ErrNotSerializable):
		return outcome.XNotSerializable
	case errors.Is(err, ErrDuplicate):
		return outcome.ODataExists
	case errors.Is(err, ErrNotFound):
		return outcome.XNotFound
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return outcome.XNotAcknowledged
	}
	return fallback
}

// isDuplicate detects unique-constraint violations across drivers.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed: unique")
}
