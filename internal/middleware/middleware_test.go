package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0.001, 2))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimit_DisabledWhenZero(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0, 0))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://turf.example.com"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://turf.example.com")
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://turf.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestErrorLogger_RecoversPanic(t *testing.T) {
	router := gin.New()
	router.Use(ErrorLogger())
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := logf
	logf = func(format string, args ...interface{}) { lines = append(lines, fmt.Sprintf(format, args...)) }
	t.Cleanup(func() { logf = prev })
	return &lines
}

func TestErrorLogger_TagsFailuresWithRouteParams(t *testing.T) {
	lines := captureLogs(t)
	router := gin.New()
	router.Use(ErrorLogger())
	router.GET("/payments/:checkoutRequestId", func(c *gin.Context) {
		c.Set("user_id", int64(7))
		c.Set("role", "USER")
		c.Status(http.StatusBadGateway)
	})
	router.POST("/tickets/validate/:bookingId", func(c *gin.Context) { panic("db gone") })
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/payments/ws_CO_001", nil)
	req.Header.Set("X-Request-ID", "req-1")
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/tickets/validate/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ok", nil))

	if assert.Len(t, *lines, 2) {
		first, second := (*lines)[0], (*lines)[1]
		assert.Contains(t, first, "kind=http_error status=502")
		assert.Contains(t, first, "route=/payments/:checkoutRequestId checkout_request_id=ws_CO_001")
		assert.Contains(t, first, "user_id=7 role=USER request_id=req-1")
		assert.NotContains(t, first, "stack=")

		assert.Contains(t, second, "kind=panic status=500")
		assert.Contains(t, second, "booking_id=42")
		assert.Contains(t, second, `error="db gone"`)
		assert.True(t, strings.Contains(second, "stack="))
	}
}
