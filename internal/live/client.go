package live

import (
	"time"

	"github.com/anonto42/loopline/backend/pkg/observability"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client bridges one websocket connection to a hub subscription.
type Client struct {
	conn *websocket.Conn
	sub  *Subscriber
	log  *observability.Logger
}

// NewClient wraps an upgraded websocket connection around a subscription.
func NewClient(conn *websocket.Conn, sub *Subscriber, log *observability.Logger) *Client {
	return &Client{conn: conn, sub: sub, log: log}
}

// Run starts the read and write pumps and blocks until the connection
// closes. The subscription is released on exit.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump discards client frames; the subscription is push-only. It
// exists to service pong handling and to detect disconnects.
func (c *Client) readPump() {
	defer c.sub.Close()
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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
