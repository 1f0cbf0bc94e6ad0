package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
	authorizeWait  = 5 * time.Second
)

// Events sent to clients
const (
	EventJoinedRoom = "joined_room"
	EventJoinedChat = "joined_chat"
	EventNewMessage = "new_message"
	EventError      = "error"
)

// RoomAuthorizer decides whether a user may subscribe to a room they asked to join.
type RoomAuthorizer func(ctx context.Context, userID uuid.UUID, role models.Role, room string) bool

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]bool
	UserID uuid.UUID
	Role   models.Role
	Name   string
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role models.Role, name string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]bool),
		UserID: userID,
		Role:   role,
		Name:   name,
	}
}

type inbound struct {
	Type string `json:"type"`
	Data struct {
		RoomID     string `json:"room_id"`
		IncidentID string `json:"incident_id"`
		Message    string `json:"message"`
	} `json:"data"`
}

// ChatMessage is a participant message posted to an incident room.
// Sender fields come from the authenticated connection.
type ChatMessage struct {
	IncidentID uuid.UUID   `json:"incident_id"`
	Message    string      `json:"message"`
	SenderID   uuid.UUID   `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	SenderRole models.Role `json:"sender_role"`
	Timestamp  string      `json:"timestamp"`
}

func (c *Client) readPump(authorize RoomAuthorizer, log logrus.FieldLogger) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("websocket closed unexpectedly")
			}
			return
		}
		c.handleMessage(raw, authorize, log)
	}
}

func (c *Client) handleMessage(raw []byte, authorize RoomAuthorizer, log logrus.FieldLogger) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.WithError(err).Debug("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case "join_room":
		room := msg.Data.RoomID
		if room == "" {
			c.replyError("room_id is required")
			return
		}
		if c.join(room, authorize, log) {
			c.hub.sendTo(c, EventJoinedRoom, map[string]string{"room": room})
		}

	case "join_chat":
		id, err := uuid.Parse(msg.Data.IncidentID)
		if err != nil {
			c.replyError("invalid incident_id")
			return
		}
		if c.join(IncidentRoom(id), authorize, log) {
			c.hub.sendTo(c, EventJoinedChat, map[string]uuid.UUID{"incident_id": id})
		}

	case "leave_room":
		c.hub.Leave(msg.Data.RoomID, c)

	case "send_message":
		c.postChat(msg.Data.IncidentID, msg.Data.Message, authorize, log)

	default:
		c.replyError("unknown message type")
	}
}

func (c *Client) allowed(room string, authorize RoomAuthorizer) bool {
	if authorize == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), authorizeWait)
	defer cancel()
	return authorize(ctx, c.UserID, c.Role, room)
}

func (c *Client) join(room string, authorize RoomAuthorizer, log logrus.FieldLogger) bool {
	if !c.allowed(room, authorize) {
		log.WithFields(logrus.Fields{"user_id": c.UserID, "room": room}).Warn("room join denied")
		c.replyError("not allowed to join " + room)
		return false
	}
	c.hub.Join(room, c)
	return true
}

// postChat relays a message to everyone in the incident room, including the sender.
func (c *Client) postChat(incidentID, text string, authorize RoomAuthorizer, log logrus.FieldLogger) {
	id, err := uuid.Parse(incidentID)
	if err != nil {
		c.replyError("invalid incident_id")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.replyError("message is required")
		return
	}

	room := IncidentRoom(id)
	if !c.allowed(room, authorize) {
		log.WithFields(logrus.Fields{"user_id": c.UserID, "incident_id": id}).Warn("chat message denied")
		c.replyError("not allowed to post in this incident")
		return
	}

	name := c.Name
	if name == "" {
		name = string(c.Role)
	}
	n, err := c.hub.Publish(room, EventNewMessage, ChatMessage{
		IncidentID: id,
		Message:    text,
		SenderID:   c.UserID,
		SenderName: name,
		SenderRole: c.Role,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.WithError(err).Error("chat message not published")
		c.replyError("message not sent")
		return
	}
	log.WithFields(logrus.Fields{"incident_id": id, "user_id": c.UserID, "recipients": n}).Debug("chat message sent")
}

func (c *Client) replyError(message string) {
	c.hub.sendTo(c, EventError, map[string]string{"message": message})
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
