package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Events buffered per subscriber before it is dropped
	sendBuffer = 64
)

// subscriber is one WebSocket connection
type subscriber struct {
	id     string
	remote string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	done   chan struct{}
}

// close stops the write loop. Safe to call more than once.
func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// hub tracks subscribers and fans events out to them
type hub struct {
	mu      sync.RWMutex
	subs    map[string]*subscriber
	metrics *metrics
}

func newHub(m *metrics) *hub {
	return &hub{subs: make(map[string]*subscriber), metrics: m}
}

func (h *hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.activeSubscribers.Set(float64(n))
}

func (h *hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.activeSubscribers.Set(float64(n))
	s.close()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// broadcast queues data for every subscriber. A subscriber whose buffer is
// full is disconnected rather than blocking the gateway read loop.
func (h *hub) broadcast(data []byte) {
	h.mu.RLock()
	var slow []*subscriber
	for _, s := range h.subs {
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.metrics.droppedEvents.Inc()
		logging.Warn("Subscriber fell behind, disconnecting",
			zap.String("subscriber", s.id),
			zap.String("remote_addr", s.remote),
		)
		h.remove(s)
	}
}

// closeAll disconnects every subscriber
func (h *hub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()
	h.metrics.activeSubscribers.Set(0)

	for _, s := range subs {
		s.close()
	}
}

// handleWebSocket upgrades the request and serves one subscriber until it
// disconnects
func (b *Bridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s := &subscriber{
		id:     uuid.NewString(),
		remote: r.RemoteAddr,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	logging.LogConnection(s.remote, "subscriber_connected")

	hello, _ := json.Marshal(Event{
		Type:       EventHello,
		Timestamp:  b.now(),
		Subscriber: s.id,
		Version:    b.version,
	})
	s.send <- hello
	b.hub.add(s)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.writeLoop(s)
	}()
	b.readLoop(s)
}

// readLoop handles commands until the connection fails
func (b *Bridge) readLoop(s *subscriber) {
	defer func() {
		b.hub.remove(s)
		logging.LogConnection(s.remote, "subscriber_disconnected")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Subscriber connection closed unexpectedly",
					zap.String("subscriber", s.id),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(s.id, "received", msgType, data)

		var result Result
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			result = Result{Type: EventResult, Error: "invalid command: " + err.Error(), ErrorKind: "other"}
		} else {
			result = b.HandleCommand(cmd)
		}

		reply, _ := json.Marshal(result)
		select {
		case s.send <- reply:
		case <-s.done:
			return
		}
	}
}

// writeLoop drains the subscriber's queue and keeps the connection alive
func (b *Bridge) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug("Subscriber write failed", zap.String("subscriber", s.id), zap.Error(err))
				s.close()
				return
			}
			logging.LogWebSocketMessage(s.id, "sent", websocket.TextMessage, data)

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}

		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
