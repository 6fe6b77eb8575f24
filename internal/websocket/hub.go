package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gw "github.com/gorilla/websocket"

	"github.com/polkiloo/storepay/internal/domain/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Conn is a websocket connection.
type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Upgrade switches an HTTP request to the websocket protocol.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// OrderUpdate is pushed to subscribers of an order.
type OrderUpdate struct {
	OrderID string            `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
}

type client struct {
	hub     *Hub
	conn    *Conn
	send    chan []byte
	orderID string

	// guarded by Hub.mu
	notified bool
}

// Hub fans order status changes out to websocket subscribers keyed by order id.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	closed  bool
	logger  *slog.Logger
}

// NewHub constructs Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger,
	}
}

// StatusLoader reads the current status of the subscribed order.
type StatusLoader func() (model.OrderStatus, error)

// Attach subscribes conn to updates of orderID and then sends the status
// returned by load. Registering before loading means a transition committed
// in between is either seen by load or broadcast to the new subscriber.
func (h *Hub) Attach(conn *Conn, orderID string, load StatusLoader) {
	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		orderID: orderID,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	set, ok := h.clients[orderID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[orderID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	current, err := load()
	if err != nil {
		h.logger.Warn("load order status for subscriber", slog.String("order_id", orderID), slog.String("error", err.Error()))
		h.remove(c)
		_ = conn.Close()
		return
	}

	if msg, err := json.Marshal(OrderUpdate{OrderID: orderID, Status: current}); err == nil {
		h.mu.Lock()
		// a broadcast already delivered is never older than the loaded status
		if _, live := h.clients[orderID][c]; live && !c.notified {
			c.send <- msg
		}
		h.mu.Unlock()
	}

	go c.writePump()
	go c.readPump()
}

// OrderUpdated broadcasts a status change without blocking the caller.
// Subscribers that cannot keep up are dropped.
func (h *Hub) OrderUpdated(orderID string, status model.OrderStatus) {
	msg, err := json.Marshal(OrderUpdate{OrderID: orderID, Status: status})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[orderID] {
		select {
		case c.send <- msg:
			c.notified = true
		default:
			h.logger.Warn("dropping slow websocket subscriber", slog.String("order_id", orderID))
			h.removeLocked(c)
		}
	}
}

// Subscribers reports the number of live subscribers of an order.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[orderID])
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.orderID]
	if !ok {
		return
	}
	if _, exists := set[c]; !exists {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.orderID)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gw.CloseMessage, gw.FormatCloseMessage(gw.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gw.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
