// Package realtime fans events out to websocket subscribers grouped in named rooms.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const AuthoritiesRoom = "authorities"

func UserRoom(userID uuid.UUID) string {
	return "user_" + userID.String()
}

func IncidentRoom(incidentID uuid.UUID) string {
	return "incident_" + incidentID.String()
}

// Message is the envelope written to every subscriber
type Message struct {
	Event     string      `json:"event"`
	Room      string      `json:"room,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Hub tracks connected clients and their rooms. Delivery is best-effort:
// a subscriber whose buffer is full is disconnected instead of blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		log:     log,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked must be called with h.mu held for writing.
func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
}

func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
}

func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		delete(c.rooms, room)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends event to every client in room and returns how many
// subscribers accepted it. An empty room is not an error.
func (h *Hub) Publish(room, event string, data interface{}) (int, error) {
	payload, err := json.Marshal(Message{
		Event:     event,
		Room:      room,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return 0, fmt.Errorf("encode %s message: %w", event, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.log.WithFields(logrus.Fields{"room": room, "user_id": c.UserID}).
				Warn("subscriber buffer full, disconnecting")
			h.removeLocked(c)
		}
	}
	return delivered, nil
}

// sendTo delivers an event to one client outside of any room.
func (h *Hub) sendTo(c *Client, event string, data interface{}) {
	payload, err := json.Marshal(Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("encode direct message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.log.WithField("user_id", c.UserID).Warn("subscriber buffer full, disconnecting")
		h.removeLocked(c)
	}
}

// RoomSize is used by health reporting and tests.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
