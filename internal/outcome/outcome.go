// Package outcome defines the discrete result tags returned by every write
// and lookup operation in the persistence and service layers.
//
// Call sites branch on a Code instead of inspecting errors. Codes prefixed
// with O are successes; codes prefixed with X are failures.
package outcome

import "fmt"

// Code is a taxonomised operation result.
type Code int

// Success codes.
const (
	OInserted Code = iota + 1
	ODataExists
	ODataUpdated
	OFound
	OCompleted
)

// Failure codes. They start at 100 so a Code can be classified by range.
const (
	XNotAcknowledged Code = iota + 100
	XNotSerializable
	XTypeMismatch
	XInvalidField
	XCastingFailed
	XReadOnly
	XRequiredNotFilled
	XFieldNotExist
	XInvalidModel
	XNotFound
	XConstructUnknown
	XInsertUnknown
	XUpdateUnknown
	XDeleteUnknown

	XInsufficientPermission
	XPinnedContentExisted
	XARInvalidKeyword
	XARInvalidResponse
	XARInvalidReference
	XARTooManyResponses
)

var names = map[Code]string{
	OInserted:               "O_INSERTED",
	ODataExists:             "O_DATA_EXISTS",
	ODataUpdated:            "O_DATA_UPDATED",
	OFound:                  "O_FOUND",
	OCompleted:              "O_COMPLETED",
	XNotAcknowledged:        "X_NOT_ACKNOWLEDGED",
	XNotSerializable:        "X_NOT_SERIALIZABLE",
	XTypeMismatch:           "X_TYPE_MISMATCH",
	XInvalidField:           "X_INVALID_FIELD",
	XCastingFailed:          "X_CASTING_FAILED",
	XReadOnly:               "X_READONLY",
	XRequiredNotFilled:      "X_REQUIRED_NOT_FILLED",
	XFieldNotExist:          "X_FIELD_NOT_EXIST",
	XInvalidModel:           "X_INVALID_MODEL",
	XNotFound:               "X_NOT_FOUND",
	XConstructUnknown:       "X_CONSTRUCT_UNKNOWN",
	XInsertUnknown:          "X_INSERT_UNKNOWN",
	XUpdateUnknown:          "X_UPDATE_UNKNOWN",
	XDeleteUnknown:          "X_DELETE_UNKNOWN",
	XInsufficientPermission: "X_INSUFFICIENT_PERMISSION",
	XPinnedContentExisted:   "X_PINNED_CONTENT_EXISTED",
	XARInvalidKeyword:       "X_AR_INVALID_KEYWORD",
	XARInvalidResponse:      "X_AR_INVALID_RESPONSE",
	XARInvalidReference:     "X_AR_INVALID_REFERENCE",
	XARTooManyResponses:     "X_AR_TOO_MANY_RESPONSES",
}

// String returns the upper-snake name of the code, e.g. "O_INSERTED".
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("OUTCOME(%d)", int(c))
}

// IsSuccess reports whether the code denotes a successful operation.
func (c Code) IsSuccess() bool { return c > 0 && c < XNotAcknowledged }

// IsInserted reports whether a new record was committed.
func (c Code) IsInserted() bool { return c == OInserted }

// MarshalText renders the code by name so JSON payloads stay readable.
func (c Code) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
