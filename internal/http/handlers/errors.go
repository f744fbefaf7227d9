package handlers

// Stable error codes carried in ErrorResponse.Code. Clients branch on these,
// not on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInvalidID        = "invalid_id"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	ErrCodeListFailed  = "list_failed"
	ErrCodeStatsFailed = "stats_failed"
)
