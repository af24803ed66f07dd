package live

import (
	"net/http"
	"sync"
	"time"

	"trattoria/middleware"
	"trattoria/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Client is one connected admin dashboard.
type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

// Hub fans out encoded events to every connected admin.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.Send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.Send <- msg:
				default:
					// slow consumer
					close(c.Send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues msg for every client. It never blocks the caller; when
// the queue is full the message is dropped.
func (h *Hub) Publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		log.Warn().Msg("live: broadcast queue full, dropping event")
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Count reports connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browsers cannot set Authorization on websocket requests; the admin
	// token in the query string is the gate
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws/admin?token=
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	claims, err := middleware.ParseToken(r.URL.Query().Get("token"))
	if err != nil || (claims.ID != "" && middleware.Revoked(r.Context(), claims.ID)) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if !claims.IsAdmin() {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("live: websocket upgrade failed")
		return
	}
	c := &Client{Conn: conn, Send: make(chan []byte, sendBuffer), UserID: claims.UserID}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	log.Info().Str("user", c.UserID).Msg("live: admin connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for disconnects; dashboards do not send anything.
func (h *Hub) readPump(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.Conn.Close()
		log.Info().Str("user", c.UserID).Msg("live: admin disconnected")
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
