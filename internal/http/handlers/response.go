// Package handlers implements the read-only admin API over the auto-reply
// engine and the remote-control registry.
//
// Every failure is an ErrorResponse with a stable code from errors.go. List
// endpoints send a weak ETag and honour If-None-Match.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-autoreply-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"no active session"`
}

// fail aborts with an ErrorResponse. 5xx are logged with the request logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// etagOf folds the given hashes into a weak ETag under prefix.
func etagOf(prefix string, hashes []uint64) string {
	h := fnv.New64a()
	var b [8]byte
	for _, x := range hashes {
		for i := range b {
			b[i] = byte(x >> (8 * i))
		}
		_, _ = h.Write(b[:])
	}
	return fmt.Sprintf(`W/"%s:%d:%x"`, prefix, len(hashes), h.Sum64())
}

// notModified sets the ETag and reports whether the client copy is current,
// in which case a bare 304 has already been written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
