package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/jwt"
	"github.com/nablus1/TurfArena-booking/internal/pkg/poller"
	"github.com/nablus1/TurfArena-booking/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the stream is authenticated by the token query parameter
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	EventStatus = "status"
	EventFinal  = "final"
)

type WSEvent struct {
	Type    string          `json:"type"`
	Outcome string          `json:"outcome,omitempty"`
	Payment *StatusResponse `json:"payment,omitempty"`
}

// WSHandler streams status changes of one payment until it settles or the
// poll budget runs out.
type WSHandler struct {
	hub     *Hub
	service *Service
	jwt     *jwt.Service
	poller  *poller.Poller
}

func NewWSHandler(hub *Hub, service *Service, jwtService *jwt.Service, p *poller.Poller) *WSHandler {
	if p == nil {
		p = poller.New(poller.DefaultMaxAttempts, poller.DefaultInterval)
	}
	return &WSHandler{hub: hub, service: service, jwt: jwtService, poller: p}
}

// Stream handles GET /ws/payments/:checkoutRequestId?token=JWT.
func (h *WSHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}
	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}
	actor := authz.Actor{UserID: claims.UserID, Role: domain.UserRole(claims.Role)}
	checkoutID := c.Param("checkoutRequestId")

	initial, err := h.service.Status(c.Request.Context(), actor, checkoutID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// subscribe before upgrading so no broadcast is missed in between
	sub, unsubscribe := h.hub.Subscribe(checkoutID)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !send(conn, WSEvent{Type: EventStatus, Payment: initial}) {
		return
	}
	if settled(initial.Status) {
		closeStream(conn, WSEvent{Type: EventFinal, Outcome: initial.Status, Payment: initial})
		return
	}

	done := make(chan poller.Result, 1)
	go func() {
		res, _ := h.poller.Poll(ctx, poller.FetcherFunc(func(ctx context.Context) (poller.Snapshot, error) {
			st, err := h.service.Status(ctx, actor, checkoutID)
			if err != nil {
				return poller.Snapshot{}, err
			}
			return poller.Snapshot{Status: st.Status, ReceiptNumber: st.ReceiptNumber, BookingID: st.Booking.ID, BookingStatus: st.Booking.Status}, nil
		}))
		done <- res
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	last := initial
	for {
		select {
		case st := <-sub.send:
			last = &st
			if !send(conn, WSEvent{Type: EventStatus, Payment: last}) {
				return
			}
			if settled(st.Status) {
				closeStream(conn, WSEvent{Type: EventFinal, Outcome: st.Status, Payment: last})
				return
			}
		case res := <-done:
			if res.Outcome != poller.OutcomeTimedOut {
				last.Status = res.Last.Status
				last.ReceiptNumber = res.Last.ReceiptNumber
				last.Booking.Status = res.Last.BookingStatus
			}
			closeStream(conn, WSEvent{Type: EventFinal, Outcome: string(res.Outcome), Payment: last})
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func settled(status string) bool {
	return domain.PaymentStatus(status).Terminal()
}

func send(conn *websocket.Conn, ev WSEvent) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev) == nil
}

func closeStream(conn *websocket.Conn, final WSEvent) {
	if !send(conn, final) {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, final.Outcome),
		time.Now().Add(writeWait))
}
