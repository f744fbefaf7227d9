// Package middleware contains the Gin middleware of the admin API.
//
// The intended order is RequestID, Logger, Recovery so that access logs and
// recovered panics both carry the correlation id. Logger attaches a
// request-scoped zerolog.Logger that handlers fetch with LoggerFrom.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	loggerKey       = "logger"
	requestIDHeader = "X-Request-ID"
	// OperatorHeader names the operator issuing admin calls. It is only used
	// for logging and rate-limit keys.
	OperatorHeader    = "X-Operator-ID"
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID or mints a UUID, stores it in
// the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// Logger writes one access log line per request. The query string and the
// request headers go through the redactor; bodies are never logged. Path
// parameters (channel, user, source) are attached as fields so a channel's
// admin traffic can be grepped.
func Logger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts)
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		lc := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("query", truncate(red.query(c.Request.URL.RawQuery), maxQueryLogLength))
		if op := c.GetHeader(OperatorHeader); op != "" {
			lc = lc.Str("operator", red.value(op))
		}
		for _, p := range c.Params {
			lc = lc.Str("param_"+p.Key, p.Value)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = l.Warn()
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Interface("headers", red.headers(c.Request.Header)).
			Msg("request")
	}
}

// Recovery turns a panic into the standard 500 envelope and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global one when
// Logger is not installed.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("request_id", RequestIDFrom(c)).Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
