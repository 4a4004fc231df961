package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"pulsepath/internal/models"
	"pulsepath/pkg/logger"
)

// Hub tracks live event-stream connections. Event routing itself happens in
// the fanout; the hub only owns connection lifecycle so shutdown can close
// every socket cleanly.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	log        *logger.Logger
}

// Message is the wire frame pushed to subscribers.
type Message struct {
	Type      string               `json:"type"`
	Timestamp int64                `json:"timestamp"`
	Event     *models.RequestEvent `json:"event,omitempty"`
	Data      map[string]string    `json:"data,omitempty"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Shutdown stops the run loop and closes every connection.
func (h *Hub) Shutdown() {
	close(h.done)
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.log.WithCallerID(client.CallerID).WithField("role", string(client.Role)).Debug("event stream connected")

	welcome := Message{
		Type:      "welcome",
		Timestamp: time.Now().Unix(),
		Data:      map[string]string{"subscriber_id": client.SubscriberID},
	}
	h.sendToClient(client, welcome)
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.detach()
		close(client.send)
		h.log.WithCallerID(client.CallerID).Debug("event stream disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.detach()
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendToClient(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
		delete(h.clients, client)
		client.detach()
		close(client.send)
	}
}
