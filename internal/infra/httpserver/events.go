package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/analytics-workspace/internal/application/workspace"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub fans controller state events out to the websocket connections of each
// session
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
	log   zerolog.Logger

	upgrader websocket.Upgrader
}

func NewHub(log zerolog.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		conns:    make(map[string]map[*websocket.Conn]struct{}),
		log:      log.With().Str("component", "events").Logger(),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// Publish sends ev to every connection of session. Connections that fail
// to take the write are dropped.
func (h *Hub) Publish(session string, ev workspace.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn().Err(err).Str("controller", ev.Controller).Msg("encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[session] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn().Err(err).Str("session", session).Msg("ws write failed, dropping connection")
			h.removeLocked(session, conn)
		}
	}
}

func (h *Hub) add(session string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[session]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[session] = set
	}
	set[conn] = struct{}{}
}

func (h *Hub) remove(session string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(session, conn)
}

func (h *Hub) removeLocked(session string, conn *websocket.Conn) {
	set := h.conns[session]
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, session)
	}
	_ = conn.Close()
}

// CloseSession disconnects every connection of session
func (h *Hub) CloseSession(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[session] {
		h.removeLocked(session, conn)
	}
}

// Count returns the number of connections of session
func (h *Hub) Count(session string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[session])
}

// Serve upgrades the request and keeps the connection until the client goes
// away. The client only listens; inbound frames other than pongs are ignored.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, session string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws upgrade failed")
		return
	}
	h.add(session, conn)
	defer h.remove(session, conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				h.mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				h.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
