package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

var logf = log.Printf

// routeParams are the path parameters worth tagging a failed request with.
// A failing push or callback is traced by its checkout id, a failing gate
// scan by the booking.
var routeParams = []struct{ param, key string }{
	{"checkoutRequestId", "checkout_request_id"},
	{"bookingId", "booking_id"},
	{"id", "resource_id"},
}

// ErrorLogger recovers panics into the standard error envelope and logs
// requests that failed with a 5xx or attached gin errors.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				stack := debug.Stack()
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
				logFailure(c, start, "panic", fmt.Sprint(recovered), stack)
				return
			}

			for _, err := range c.Errors {
				msg := err.Error()
				if err.Meta != nil {
					msg = fmt.Sprintf("%s meta=%+v", msg, err.Meta)
				}
				logFailure(c, start, "gin_error", msg, nil)
			}
			if len(c.Errors) == 0 && c.Writer.Status() >= http.StatusInternalServerError {
				logFailure(c, start, "http_error", http.StatusText(c.Writer.Status()), nil)
			}
		}()

		c.Next()
	}
}

func logFailure(c *gin.Context, start time.Time, kind, message string, stack []byte) {
	var b strings.Builder
	fmt.Fprintf(&b, "level=error msg=request failed kind=%s status=%d method=%s route=%s",
		kind, c.Writer.Status(), c.Request.Method, route(c))
	for _, p := range routeParams {
		if v := c.Param(p.param); v != "" {
			fmt.Fprintf(&b, " %s=%s", p.key, v)
		}
	}
	if uid := c.GetInt64("user_id"); uid != 0 {
		fmt.Fprintf(&b, " user_id=%d role=%s", uid, c.GetString("role"))
	}
	if id := requestID(c); id != "" {
		fmt.Fprintf(&b, " request_id=%s", id)
	}
	fmt.Fprintf(&b, " client_ip=%s latency=%s error=%q", c.ClientIP(), time.Since(start), message)
	if len(stack) > 0 {
		fmt.Fprintf(&b, " stack=%q", stack)
	}
	logf("%s", b.String())
}

// route prefers the registered pattern so ids stay out of the path field.
func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return c.GetHeader("X-Correlation-ID")
}
