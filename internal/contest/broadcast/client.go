package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"eclipser/pkg/utils/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one websocket connection and the set of rooms it joined.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	rooms     map[string]struct{}
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// trySend queues a payload without blocking. Returns false when the
// client is closed or its buffer is full.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// clientMessage is what the browser sends to manage room membership.
type clientMessage struct {
	Action    string `json:"action"`
	ContestID string `json:"contest_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// ServeWS returns the gin handler that upgrades the connection and
// registers it with the hub.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			hub:   hub,
			conn:  conn,
			send:  make(chan []byte, sendBufferSize),
			rooms: make(map[string]struct{}),
		}
		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case ActionJoinContest:
			if msg.ContestID != "" {
				c.hub.join(ContestRoom(msg.ContestID), c)
			}
		case ActionLeaveContest:
			if msg.ContestID != "" {
				c.hub.leave(ContestRoom(msg.ContestID), c)
			}
		case ActionJoinUserRoom:
			if msg.UserID != "" {
				c.hub.join(UserRoom(msg.UserID), c)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.drop(c)
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}
