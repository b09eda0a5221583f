package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"deskhook/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the server binds to loopback by default and is token protected otherwise
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans stream messages out to connected clients
type Hub struct {
	server *Server

	clients   map[*wsClient]bool
	clientsMu sync.Mutex

	broadcast  chan []byte
	direct     chan directMessage
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
}

// wsClient represents one connected stream consumer
type wsClient struct {
	hub  *Hub
	id   string
	conn *websocket.Conn
	send chan []byte
	ip   string
}

type directMessage struct {
	client *wsClient
	data   []byte
}

func newHub(s *Server) *Hub {
	return &Hub{
		server:     s,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, sendBuffer),
		direct:     make(chan directMessage, sendBuffer),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.clientsMu.Unlock()
			h.server.logger.Printf("WS: Client %s registered from %s. Total clients: %d", client.id, client.ip, total)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.server.logger.Printf("WS: Client %s unregistered. Total clients: %d", client.id, len(h.clients))
			}
			h.clientsMu.Unlock()

		case data := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				h.deliver(client, data)
			}
			h.clientsMu.Unlock()

		case msg := <-h.direct:
			h.clientsMu.Lock()
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.data)
			}
			h.clientsMu.Unlock()

		case <-h.done:
			h.clientsMu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// deliver drops a client whose buffer is full. clientsMu must be held.
func (h *Hub) deliver(client *wsClient, data []byte) {
	select {
	case client.send <- data:
	default:
		h.server.logger.Printf("WS: Client %s is too slow, disconnecting", client.id)
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Broadcast encodes msg and queues it for all clients without blocking.
func (h *Hub) Broadcast(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.server.logger.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.server.logger.Printf("WS: Broadcast queue full, dropping %s message", msg.Type)
	}
}

func (h *Hub) sendTo(client *wsClient, msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.server.logger.Printf("WS: Failed to marshal %s message: %v", msg.Type, err)
		return
	}
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.done:
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.server.logger.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		ip:   r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	h.sendTo(client, protocol.Message{
		Type:    protocol.TypeHello,
		Payload: protocol.HelloPayload{ClientID: client.id, Version: h.server.version},
	})
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.server.logger.Printf("WS: Read error from %s: %v", c.id, err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *wsClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.server.logger.Printf("WS: Invalid message format from %s: %v", c.id, err)
		return
	}

	switch msg.Type {
	case protocol.TypeSnapshotRequest:
		c.hub.sendTo(c, protocol.Message{
			Type:    protocol.TypeSnapshotResponse,
			Payload: c.hub.server.snapshot(),
		})

	case protocol.TypePing:
		c.hub.sendTo(c, protocol.Message{Type: protocol.TypePing})

	default:
		c.hub.server.logger.Printf("WS: Ignoring %q message from %s", msg.Type, c.id)
	}
}
