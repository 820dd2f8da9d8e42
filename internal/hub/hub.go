// Package hub fans queue updates out to connected display boards.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"qms/token-queue/internal/events"
	"qms/token-queue/internal/store"
)

// Subscription narrows what a client receives. An empty department means
// every department.
type Subscription struct {
	Department string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action     string `json:"action"`
	Department string `json:"department"`
}

// Envelope is the message written to display clients.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Display   interface{}     `json:"display,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends payload to every client whose subscription matches meta.
// A client whose buffer is full misses the message.
func (h *Hub) Broadcast(payload []byte, meta Subscription) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func match(sub Subscription, meta Subscription) bool {
	if sub.Department != "" && meta.Department != "" && meta.Department != sub.Department {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}

// Publisher turns domain events into display messages. Snapshot, when set,
// is attached so a board can redraw from a single message.
type Publisher struct {
	Hub      *Hub
	Snapshot func() interface{}
}

func (p Publisher) Publish(ctx context.Context, event events.Event) error {
	if p.Hub.Len() == 0 {
		return nil
	}
	env := Envelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt}
	if event.TokenEvent() && len(event.Payload) > 0 {
		redacted, err := store.RedactTokenPayload(event.Payload)
		if err != nil {
			return err
		}
		env.Payload = redacted
	}
	if p.Snapshot != nil {
		env.Display = p.Snapshot()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	p.Hub.Broadcast(payload, Subscription{Department: event.Department})
	return nil
}
