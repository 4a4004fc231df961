package websocket

import (
	"encoding/json"
	"time"

	"pulsepath/internal/models"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one live subscriber socket. Events arrive on its fanout channel
// and are framed onto the websocket by the write pump; the read pump exists
// only for ping/pong liveness and client-driven close.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	events       <-chan *models.RequestEvent
	cancel       func()
	CallerID     primitive.ObjectID
	Role         models.Role
	SubscriberID string
}

func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	callerID primitive.ObjectID,
	role models.Role,
	subscriberID string,
	events <-chan *models.RequestEvent,
	cancel func(),
) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 64),
		events:       events,
		cancel:       cancel,
		CallerID:     callerID,
		Role:         role,
		SubscriberID: subscriberID,
	}
}

// detach releases the fanout subscription. Hub-only; idempotent because the
// fanout tolerates double close through its own once guard.
func (c *Client) detach() {
	if c.cancel != nil {
		c.cancel()
	}
}

// pumpEvents frames fanout events into the send buffer. It ends when the
// subscription channel closes.
func (c *Client) pumpEvents() {
	for evt := range c.events {
		msg := Message{
			Type:      "request_event",
			Timestamp: time.Now().Unix(),
			Event:     evt,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Socket cannot keep up; drop the frame. The client
			// reconciles through the list endpoints on reconnect.
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
