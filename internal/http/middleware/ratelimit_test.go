package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestKeyByOperatorOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyByOperatorOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("ip key = %q", got)
	}
	c.Request.Header.Set(OperatorHeader, "ops-1")
	if got := KeyByOperatorOrIP()(c); got != "op:ops-1" {
		t.Fatalf("operator key = %q", got)
	}
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 2, nil)

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(op string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(OperatorHeader, op)
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := hit("a"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d within burst = %d", i, w.Code)
		}
	}
	w := hit("a")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 429 with Retry-After, got %d %q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}

	if w := hit("b"); w.Code != http.StatusNoContent {
		t.Fatalf("other operator should have its own bucket, got %d", w.Code)
	}
}

func TestRateLimiter_ReusesBucket(t *testing.T) {
	rl := NewRateLimiter(1, 0, nil)
	if rl.burst != 1 {
		t.Fatalf("burst should be coerced to 1, got %d", rl.burst)
	}
	if rl.limiter("k") != rl.limiter("k") {
		t.Fatalf("expected the same bucket for the same key")
	}
	if rl.buckets.Len() != 1 {
		t.Fatalf("buckets = %d", rl.buckets.Len())
	}
}
