// Package network holds the client side of the deskhook event stream.
package network

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"deskhook/internal/protocol"

	"github.com/gorilla/websocket"
)

// WSClient follows the event stream of a deskhook instance and reconnects
// when the connection drops.
type WSClient struct {
	hostAddr string
	token    string
	send     chan protocol.Message
	done     chan struct{}
	doneOnce sync.Once

	// RetryDelay is the pause between connection attempts
	RetryDelay time.Duration

	// Callbacks, called on the read goroutine
	OnHello   func(protocol.HelloPayload)
	OnMessage func(protocol.Message)

	logger *log.Logger

	mu          sync.Mutex
	isConnected bool
	clientID    string
}

// NewWSClient creates a new WebSocket client for hostAddr ("host:port").
func NewWSClient(hostAddr, token string, logger *log.Logger) *WSClient {
	if logger == nil {
		logger = log.Default()
	}
	return &WSClient{
		hostAddr:   hostAddr,
		token:      token,
		send:       make(chan protocol.Message, 100),
		done:       make(chan struct{}),
		RetryDelay: 5 * time.Second,
		logger:     logger,
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(c.RetryDelay):
			c.logger.Println("WS Client: Attempting reconnection...")
		}
	}
}

func (c *WSClient) connect() {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	c.logger.Printf("WS Client: Connecting to %s", u.String())

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		c.logger.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()

	c.logger.Println("WS Client: Connected")

	connDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, connDone)
	}()

	// unblock the read on Close
	go func() {
		select {
		case <-c.done:
			conn.Close()
		case <-connDone:
		}
	}()

	c.readPump(conn)
	close(connDone)

	c.mu.Lock()
	c.isConnected = false
	c.clientID = ""
	c.mu.Unlock()

	<-writerDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	// server pings keep the deadline moving too
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Printf("WS Client: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second) // Ping ticker
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.Printf("WS Client: Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-connDone:
			return
		case <-c.done:
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	if msg.Type == protocol.TypeHello {
		var hello protocol.HelloPayload
		if err := msg.DecodePayload(&hello); err != nil {
			c.logger.Printf("WS Client: %v", err)
			return
		}
		c.mu.Lock()
		c.clientID = hello.ClientID
		c.mu.Unlock()
		c.logger.Printf("WS Client: Session %s (server %s)", hello.ClientID, hello.Version)
		if c.OnHello != nil {
			c.OnHello(hello)
		}
		return
	}

	if c.OnMessage != nil {
		c.OnMessage(msg)
	}
}

// RequestSnapshot asks the server for a full snapshot. The answer arrives
// through OnMessage as a snapshot_resp message.
func (c *WSClient) RequestSnapshot() {
	select {
	case c.send <- protocol.Message{Type: protocol.TypeSnapshotRequest}:
	case <-c.done:
	}
}

// IsConnected returns true if client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// ClientID returns the id the server assigned to the current session.
func (c *WSClient) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Close stops the client
func (c *WSClient) Close() {
	c.doneOnce.Do(func() { close(c.done) })
}
