package payment

import (
	"sync"

	"github.com/nablus1/TurfArena-booking/internal/metrics"
)

// Hub fans payment status changes out to the websocket streams watching a
// checkout id.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	send chan StatusResponse
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe registers interest in checkoutRequestID. The returned func
// removes the subscription.
func (h *Hub) Subscribe(checkoutRequestID string) (*subscription, func()) {
	sub := &subscription{send: make(chan StatusResponse, 4)}

	h.mu.Lock()
	if h.subs[checkoutRequestID] == nil {
		h.subs[checkoutRequestID] = make(map[*subscription]struct{})
	}
	h.subs[checkoutRequestID][sub] = struct{}{}
	h.mu.Unlock()
	metrics.PaymentStreamsActive.Inc()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[checkoutRequestID], sub)
			if len(h.subs[checkoutRequestID]) == 0 {
				delete(h.subs, checkoutRequestID)
			}
			h.mu.Unlock()
			metrics.PaymentStreamsActive.Dec()
		})
	}
}

func (h *Hub) Broadcast(checkoutRequestID string, status StatusResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[checkoutRequestID] {
		select {
		case sub.send <- status:
		default:
			// slow reader; the stream's poller will catch up
		}
	}
}

func (h *Hub) Count(checkoutRequestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[checkoutRequestID])
}
