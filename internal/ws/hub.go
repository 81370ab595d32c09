package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go-loyalty-store/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Event types pushed to connected dashboards.
const (
	EventStockUpdated       = "stock_update"
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_updated"
	EventClaimSubmitted     = "claim_submitted"
	EventClaimReviewed      = "claim_reviewed"
	EventPointsAdjusted     = "points_adjusted"
	EventVisitorCheckedIn   = "visitor_checked_in"
)

type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Broadcaster is the publishing side of the hub. Publish never blocks.
type Broadcaster interface {
	Publish(eventType string, payload interface{})
}

type Hub struct {
	Clients    map[*websocket.Conn]bool
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Publish encodes the event and queues it. When the queue is full the event
// is dropped so a slow client never stalls a checkout.
func (h *Hub) Publish(eventType string, payload interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		logger.Warn("ws: encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		logger.Warn("ws: broadcast queue full, dropping event", zap.String("type", eventType))
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			h.mutex.Unlock()
			logger.Debug("ws client connected", zap.Int("clients", h.ClientCount()))

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					logger.Debug("ws write failed, dropping client", zap.Error(err))
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Recorder is a Broadcaster that keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(eventType string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
