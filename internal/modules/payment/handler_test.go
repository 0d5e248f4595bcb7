package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/pkg/jwt"
	"github.com/nablus1/TurfArena-booking/internal/pkg/poller"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func callbackRouter(h *Handler) *gin.Engine {
	r := gin.New()
	h.RegisterWebhookRoutes(r.Group("/api/v1"), func(c *gin.Context) { c.Next() })
	return r
}

func postCallback(t *testing.T, r http.Handler, target, body string) Ack {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "the provider always gets 200")

	var ack Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	return ack
}

func callbackBody(checkoutID string, code int) string {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": checkoutID,
				"ResultCode":        code,
				"ResultDesc":        "done",
				"CallbackMetadata": map[string]any{"Item": []map[string]any{
					{"Name": "Amount", "Value": 2500},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
				}},
			},
		},
	})
	return buf.String()
}

func TestCallback_Acks(t *testing.T) {
	env := newTestEnv(t)
	u, b := env.pendingBooking(t, 1)
	push, err := env.svc.InitiatePush(context.Background(), player(u), PushRequest{BookingID: b.ID, PhoneNumber: "0708374149"})
	require.NoError(t, err)

	r := callbackRouter(NewHandler(env.svc, CallbackAuth{}))
	const url = "/api/v1/webhook/payment-callback"

	ack := postCallback(t, r, url, `{"Body":{}}`)
	assert.Equal(t, 1, ack.ResultCode)
	assert.Equal(t, "Malformed callback", ack.ResultDescription)

	ack = postCallback(t, r, url, callbackBody("ws_CO_unknown", 0))
	assert.Equal(t, 1, ack.ResultCode)
	assert.Equal(t, "Unknown CheckoutRequestID", ack.ResultDescription)

	ack = postCallback(t, r, url, callbackBody(push.CheckoutRequestID, 0))
	assert.Equal(t, Ack{ResultCode: 0, ResultDescription: "Accepted"}, ack)

	// redelivery is still accepted
	ack = postCallback(t, r, url, callbackBody(push.CheckoutRequestID, 0))
	assert.Equal(t, 0, ack.ResultCode)

	p, err := env.payments.GetByCheckoutID(context.Background(), push.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, "NLJ7RT61SV", p.ReceiptNumber)
}

func TestCallback_TokenAndNetworkChecks(t *testing.T) {
	env := newTestEnv(t)
	_, allowed, err := net.ParseCIDR("192.0.2.0/24")
	require.NoError(t, err)
	_, elsewhere, err := net.ParseCIDR("196.201.214.0/24")
	require.NoError(t, err)

	const url = "/api/v1/webhook/payment-callback"
	body := callbackBody("ws_CO_unknown", 0)

	r := callbackRouter(NewHandler(env.svc, CallbackAuth{Token: "s3cret"}))
	assert.Equal(t, "Unauthorized", postCallback(t, r, url, body).ResultDescription)
	assert.Equal(t, "Unauthorized", postCallback(t, r, url+"?token=wrong", body).ResultDescription)
	assert.Equal(t, "Unknown CheckoutRequestID", postCallback(t, r, url+"?token=s3cret", body).ResultDescription)

	// httptest requests come from 192.0.2.1
	r = callbackRouter(NewHandler(env.svc, CallbackAuth{Networks: []*net.IPNet{elsewhere}}))
	assert.Equal(t, "Unauthorized", postCallback(t, r, url, body).ResultDescription)

	r = callbackRouter(NewHandler(env.svc, CallbackAuth{Networks: []*net.IPNet{elsewhere, allowed}}))
	assert.Equal(t, "Unknown CheckoutRequestID", postCallback(t, r, url, body).ResultDescription)
}

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ErrInvalidPhone, http.StatusBadRequest, "INVALID_PHONE"},
		{ErrAlreadyPaid, http.StatusBadRequest, "ALREADY_PAID"},
		{ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
		{ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{ErrBookingNotPending, http.StatusConflict, "BOOKING_NOT_PENDING"},
		{&UpstreamError{Reason: "Insufficient balance"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeServiceError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.code)
		var body struct {
			Success bool `json:"success"`
			Error   struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Error.Code)
	}
}

func TestStream_DeliversSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, b := env.pendingBooking(t, 1)
	push, err := env.svc.InitiatePush(ctx, player(u), PushRequest{BookingID: b.ID, PhoneNumber: "0708374149"})
	require.NoError(t, err)

	jwtSvc := jwt.New("test-secret", time.Hour)
	token, err := jwtSvc.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws/payments/:checkoutRequestId", NewWSHandler(env.hub, env.svc, jwtSvc, poller.New(100, time.Hour)).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payments/" + push.CheckoutRequestID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev WSEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, "PROCESSING", ev.Payment.Status)

	_, err = env.svc.HandleCallback(ctx, successCallback(push.CheckoutRequestID))
	require.NoError(t, err)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, "COMPLETED", ev.Payment.Status)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventFinal, ev.Type)
	assert.Equal(t, "COMPLETED", ev.Outcome)
	assert.Equal(t, "CONFIRMED", ev.Payment.Booking.Status)
}

func TestStream_RejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	r := gin.New()
	r.GET("/ws/payments/:checkoutRequestId", NewWSHandler(env.hub, env.svc, jwt.New("k", time.Hour), nil).Stream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/payments/ws_CO_1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_TOKEN_MISSING")
}

func TestHub_BroadcastAndUnsubscribe(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("ws_CO_1")
	_, cancelB := h.Subscribe("ws_CO_1")
	assert.Equal(t, 2, h.Count("ws_CO_1"))

	h.Broadcast("ws_CO_1", StatusResponse{Status: "COMPLETED"})
	assert.Equal(t, "COMPLETED", (<-a.send).Status)

	cancelB()
	cancelB()
	assert.Equal(t, 1, h.Count("ws_CO_1"))
	cancelA()
	assert.Zero(t, h.Count("ws_CO_1"))

	// nobody listening; must not block
	h.Broadcast("ws_CO_1", StatusResponse{Status: "FAILED"})
}
