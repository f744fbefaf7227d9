package autoreply

import "errors"

// Errors carried in Result.Err next to the matching outcome code. Callers
// branch on the outcome; the error adds context for logs.
var (
	// ErrInvalidKeyword accompanies X_AR_INVALID_KEYWORD.
	ErrInvalidKeyword = errors.New("auto-reply keyword is invalid")

	// ErrInvalidResponse accompanies X_AR_INVALID_RESPONSE.
	ErrInvalidResponse = errors.New("auto-reply response is invalid")

	// ErrTooManyResponses accompanies X_AR_TOO_MANY_RESPONSES.
	ErrTooManyResponses = errors.New("too many auto-reply responses")

	// ErrInvalidReference accompanies X_AR_INVALID_REFERENCE: the referenced
	// module is missing, inactive, in another channel or itself a reference.
	ErrInvalidReference = errors.New("auto-reply reference is invalid")

	// ErrInsufficientPermission accompanies X_INSUFFICIENT_PERMISSION.
	ErrInsufficientPermission = errors.New("insufficient permission for pinned module")

	// ErrPinnedContentExists accompanies X_PINNED_CONTENT_EXISTED.
	ErrPinnedContentExists = errors.New("a pinned module already holds this keyword")

	// errRollback aborts an overwrite transaction; the Result set inside it
	// carries the outcome.
	errRollback = errors.New("auto-reply overwrite rolled back")
)
