package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"spotiqueue/logger"
	"spotiqueue/model"

	"github.com/gorilla/websocket"
)

// MessageType identifies a push event.
type MessageType string

const (
	MsgTypeQueueUpdate MessageType = "queue_update" // a track was admitted
	MsgTypeNowPlaying  MessageType = "now_playing"  // playback state changed
	MsgTypeVoteUpdate  MessageType = "vote_update"  // a vote was toggled
	MsgTypePrequeue    MessageType = "prequeue"     // a prequeue entry changed state
	MsgTypeConfig      MessageType = "config"       // a setting changed
	MsgTypePing        MessageType = "ping"
	MsgTypePong        MessageType = "pong"
)

// Message is the envelope pushed to subscribers.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// client is one subscriber connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to all connected clients. Clients are read-mostly
// listeners; the only inbound traffic is ping/pong keepalive.
//
// All membership changes run inside Run, so a client's send channel is
// closed exactly once, by exactly one goroutine. Broadcasters and
// connection pumps only hand work to the loop over channels.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	upgrader websocket.Upgrader
}

// NewHub creates an empty hub. Call Run before broadcasting.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin checks are handled by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client set until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.drop(c)

		case raw := <-h.broadcast:
			h.fanOut(raw)

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the run loop down and disconnects every subscriber.
func (h *Hub) Stop() {
	close(h.done)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// drop removes a client from the set and closes its send channel. The
// membership check makes a second drop of the same client a no-op.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// fanOut delivers one frame to every subscriber. Slow clients are
// dropped rather than allowed to stall the rest.
func (h *Hub) fanOut(raw []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- raw:
		default:
			h.drop(c)
		}
	}
}

// Broadcast pushes an event to every subscriber.
func (h *Hub) Broadcast(msgType MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal broadcast payload", logger.ErrorField(err))
		return
	}
	raw, err := json.Marshal(Message{Type: msgType, Data: payload, Timestamp: time.Now().Unix()})
	if err != nil {
		logger.Error("failed to marshal broadcast message", logger.ErrorField(err))
		return
	}

	select {
	case h.broadcast <- raw:
	case <-h.done:
	}
}

// BroadcastQueueUpdate announces an admitted track.
func (h *Hub) BroadcastQueueUpdate(track *model.TrackMetadata) {
	h.Broadcast(MsgTypeQueueUpdate, track)
}

// ServeWS upgrades an HTTP request into a subscriber connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns the connection: it closes the socket when the hub
// closes the send channel or the peer stops responding.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
