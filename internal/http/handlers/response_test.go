package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_500LogsWithRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp != (ErrorResponse{RequestID: "rid-500", Code: ErrCodeInternal, Message: "kaboom"}) {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func TestFail_4xxIsNotLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) { c.Set("logger", &logger) })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || buf.Len() != 0 {
		t.Fatalf("status=%d log=%q", w.Code, buf.String())
	}
}

func TestEtagOf_StableAndSensitive(t *testing.T) {
	a := etagOf("modules:x", []uint64{1, 2, 3})
	if a != etagOf("modules:x", []uint64{1, 2, 3}) {
		t.Fatalf("etag not stable")
	}
	if a == etagOf("modules:x", []uint64{3, 2, 1}) {
		t.Fatalf("etag ignores order")
	}
	if !strings.HasPrefix(a, `W/"modules:x:3:`) {
		t.Fatalf("etag format: %s", a)
	}
}
