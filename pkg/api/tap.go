package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	tapBuffer     = 256
	tapWriteWait  = 10 * time.Second
	tapPongWait   = 60 * time.Second
	tapPingPeriod = 30 * time.Second
)

// TapHub fans successfully delivered payloads out to websocket observers.
// Broadcast is called from delivery workers and must never block them: a
// client that cannot keep up has payloads dropped from its feed.
type TapHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
	logger  *log.Entry
}

func NewTapHub() *TapHub {
	return &TapHub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  log.WithField("component", "tap"),
	}
}

// Broadcast offers a payload to every attached client, dropping it for
// clients whose buffer is full.
func (h *TapHub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// HandleConnection upgrades the request and starts the read and write pumps
// for the new observer.
func (h *TapHub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("tap upgrade failed")
		return
	}

	ch := make(chan []byte, tapBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = ch
	h.mu.Unlock()

	go h.writePump(conn, ch)
	go h.readPump(conn)
}

// Close detaches all observers.
func (h *TapHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *TapHub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	conn.Close()
}

// readPump discards client frames; it exists to observe the close handshake
// and keep pong handling alive.
func (h *TapHub) readPump(conn *websocket.Conn) {
	defer h.detach(conn)
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(tapPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(tapPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("tap read error")
			}
			return
		}
	}
}

func (h *TapHub) writePump(conn *websocket.Conn, ch <-chan []byte) {
	ticker := time.NewTicker(tapPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(tapWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(tapWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
