package realtime

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/service"
	"CoinPulse/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Hub fans new notifications out to each user's open websocket connections.
// Slow subscribers lose messages instead of blocking the pipeline.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*Subscription]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// Subscription is one live listener for a user.
type Subscription struct {
	userID string
	C      chan []byte
	once   sync.Once
}

func NewHub(log *logger.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{userID: userID, C: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if set := h.subs[sub.userID]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.C) })
}

// Subscribers counts live subscriptions for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) Broadcast(userID string, n *models.Notification) {
	frame, err := json.Marshal(n)
	if err != nil {
		h.log.Warn("encode notification frame", logger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.C <- frame:
		default:
			h.log.Debug("websocket subscriber lagging, frame dropped", logger.String("user_id", userID))
		}
	}
}

// ServeWS upgrades the request and streams the user's notifications until
// the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	sub := h.Subscribe(userID)
	h.log.Debug("websocket subscribed", logger.String("user_id", userID))

	go h.readPump(conn, sub)
	h.writePump(conn, sub)
	return nil
}

// readPump only watches for close and pong frames.
func (h *Hub) readPump(conn *websocket.Conn, sub *Subscription) {
	defer h.Unsubscribe(sub)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.Unsubscribe(sub)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Unsubscribe(sub)
				return
			}
		}
	}
}

var _ service.Broadcaster = (*Hub)(nil)
