package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	// DefaultLimiterBuckets caps how many identities are tracked at once.
	DefaultLimiterBuckets = 10000
	// DefaultLimiterTTL is how long a bucket lives before it is rebuilt full.
	DefaultLimiterTTL = 10 * time.Minute
)

// KeyFunc maps a request to its rate-limit identity.
type KeyFunc func(*gin.Context) string

// KeyByOperatorOrIP keys buckets by the X-Operator-ID header when present and
// by client IP otherwise. The prefixes keep the two namespaces apart.
func KeyByOperatorOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if op := c.GetHeader(OperatorHeader); op != "" {
			return "op:" + op
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter is a per-identity token bucket. Buckets live in a bounded,
// expiring LRU so memory stays flat under key churn. It is process-local.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   KeyFunc
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst. A non-positive burst is treated as 1.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByOperatorOrIP()
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: expirable.NewLRU[string, *rate.Limiter](DefaultLimiterBuckets, nil, DefaultLimiterTTL),
	}
}

// limiter returns the bucket for key. Two requests racing on a new key may
// both create one; the loser's bucket is dropped, which only forgives a token.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if lim, ok := rl.buckets.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets.Add(key, lim)
	return lim
}

// Handler rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
