package field

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/Dosada05/field-control/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Client is one attached dashboard or operator console.
type Client struct {
	ID       uuid.UUID
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	IsClosed bool
	Mu       sync.Mutex
}

// Hub fans snapshots out to every attached client and feeds inbound operator
// commands to the controller. Delivery is best-effort per client: a slow
// subscriber gets skipped, never waited on.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	clients map[*Client]bool
	mu      sync.RWMutex

	// onRequest receives every inbound operator command; set before Run.
	onRequest func(models.ControlRequest, *Client)
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// OnRequest registers the command sink for inbound client messages.
func (h *Hub) OnRequest(fn func(models.ControlRequest, *Client)) {
	h.onRequest = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			log.Printf("client %s attached, total clients: %d", client.ID, len(h.clients))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				client.Mu.Lock()
				if !client.IsClosed {
					close(client.Send)
					client.IsClosed = true
				}
				client.Mu.Unlock()
				delete(h.clients, client)
				log.Printf("client %s detached, total clients: %d", client.ID, len(h.clients))
			}
			h.mu.Unlock()
		}
	}
}

// Send delivers one JSON message to the given clients, or to every attached
// client when no targets are named. A full or closed client channel is
// skipped so one subscriber never blocks another.
func (h *Hub) Send(message any, targets ...*Client) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshalling broadcast message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(targets) == 0 {
		for client := range h.clients {
			client.Deliver(payload)
		}
		return
	}
	for _, client := range targets {
		if h.clients[client] {
			client.Deliver(payload)
		}
	}
}

// Publish sends one message to every attached client.
func (h *Hub) Publish(message any) {
	h.Send(message)
}

// Deliver queues one payload on the client regardless of hub registration,
// dropping it when the client is closed or its queue is full.
func (c *Client) Deliver(payload []byte) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.IsClosed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Printf("client %s send channel full, dropping message", c.ID)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s read error: %v", c.ID, err)
			}
			break
		}
		var request models.ControlRequest
		if err := json.Unmarshal(message, &request); err != nil {
			log.Printf("client %s sent malformed control request: %v", c.ID, err)
			continue
		}
		if c.Hub.onRequest != nil {
			c.Hub.onRequest(request, c)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("client %s write error: %v", c.ID, err)
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
