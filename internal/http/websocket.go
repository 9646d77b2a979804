package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"moneyflow/internal/alerts"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

// alertsMessage is the frame pushed to dashboard clients.
type alertsMessage struct {
	Type     string      `json:"type"`
	Revision uint64      `json:"revision"`
	Alerts   []alertView `json:"alerts"`
}

// Hub fans alert events out to connected websocket clients. It implements
// dashboard.Notifier.
type Hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	closed   bool
	currency string
	logger   *log.Logger
	metrics  *metrics.Registry
	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. m may be nil.
func NewHub(logger *log.Logger, currency string, m *metrics.Registry) *Hub {
	return &Hub{
		clients:  make(map[*wsClient]struct{}),
		currency: currency,
		logger:   logger.WithComponent(log.ComponentWebSocket),
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and keeps it until the client leaves.
// Clients only receive; anything they send is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", log.FieldError, err.Error())
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(wsWriteWait))
		conn.Close()
		return
	}
	h.logger.DebugContext(r.Context(), "WebSocket client connected", "clients", h.Clients())

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.setGauge(len(h.clients))
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.setGauge(len(h.clients))
	h.mu.Unlock()
}

func (h *Hub) setGauge(n int) {
	if h.metrics != nil {
		h.metrics.WebSocketClients.Set(float64(n))
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read failed", log.FieldError, err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Notify broadcasts events to every client. A client whose buffer is full
// is disconnected rather than allowed to hold up the others.
func (h *Hub) Notify(ctx context.Context, events []alerts.Event) error {
	if len(events) == 0 {
		return nil
	}
	var rev uint64
	for _, e := range events {
		rev = max(rev, e.Revision)
	}
	msg, err := json.Marshal(alertsMessage{Type: "alerts", Revision: rev, Alerts: newAlertViews(events, h.currency)})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			c.close()
			dropped++
		}
	}
	h.setGauge(len(h.clients))
	if dropped > 0 {
		h.logger.WarnContext(ctx, "Dropped slow WebSocket clients", "dropped", dropped)
	}
	return nil
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.setGauge(0)
}
