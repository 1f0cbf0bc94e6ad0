package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/logger"
	"github.com/vikranta/safety/backend/internal/models"
)

func testClient(h *Hub, role models.Role, buffer int) *Client {
	c := &Client{
		hub:    h,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]bool),
		UserID: uuid.New(),
		Role:   role,
		Name:   "user-" + string(role),
	}
	h.register(c)
	return c
}

func TestHub_PublishToRoom(t *testing.T) {
	h := NewHub(logger.Discard())
	authority := testClient(h, models.RoleAuthority, 4)
	tourist := testClient(h, models.RoleTourist, 4)

	h.Join(AuthoritiesRoom, authority)
	h.Join(UserRoom(tourist.UserID), tourist)

	n, err := h.Publish(AuthoritiesRoom, "new_incident", map[string]string{"id": "x"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Publish() delivered %d, want 1", n)
	}
	if len(tourist.send) != 0 {
		t.Error("tourist received an authorities event")
	}

	var msg Message
	if err := json.Unmarshal(<-authority.send, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Event != "new_incident" || msg.Room != AuthoritiesRoom {
		t.Errorf("got event %q room %q", msg.Event, msg.Room)
	}
}

func TestHub_PublishEmptyRoom(t *testing.T) {
	h := NewHub(logger.Discard())
	n, err := h.Publish(IncidentRoom(uuid.New()), "new_message", nil)
	if err != nil || n != 0 {
		t.Errorf("Publish() = %d, %v; want 0, nil", n, err)
	}
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	h := NewHub(logger.Discard())
	slow := testClient(h, models.RoleAuthority, 1)
	h.Join(AuthoritiesRoom, slow)

	if n, _ := h.Publish(AuthoritiesRoom, "a", nil); n != 1 {
		t.Fatalf("first publish delivered %d", n)
	}
	if n, _ := h.Publish(AuthoritiesRoom, "b", nil); n != 0 {
		t.Fatalf("second publish delivered %d, want 0", n)
	}
	if h.ClientCount() != 0 || h.RoomSize(AuthoritiesRoom) != 0 {
		t.Error("slow client should have been removed")
	}
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	h := NewHub(logger.Discard())
	c := testClient(h, models.RoleTourist, 1)
	room := UserRoom(c.UserID)
	h.Join(room, c)
	h.Join(IncidentRoom(uuid.New()), c)

	h.unregister(c)
	h.unregister(c)

	if h.RoomSize(room) != 0 || h.ClientCount() != 0 {
		t.Error("client still tracked after unregister")
	}
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	h := NewHub(logger.Discard())
	c := &Client{send: make(chan []byte, 1), rooms: make(map[string]bool)}
	h.Join(AuthoritiesRoom, c)
	if h.RoomSize(AuthoritiesRoom) != 0 {
		t.Error("unregistered client joined a room")
	}
}

// drain decodes every queued message for c.
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			if err := json.Unmarshal(raw, &m); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func onlyRoom(room string) RoomAuthorizer {
	return func(_ context.Context, _ uuid.UUID, _ models.Role, r string) bool {
		return r == room
	}
}

func TestClient_HandleJoinRoom(t *testing.T) {
	h := NewHub(logger.Discard())
	c := testClient(h, models.RoleTourist, 8)
	allowed := IncidentRoom(uuid.New())
	authorize := func(_ context.Context, userID uuid.UUID, _ models.Role, room string) bool {
		return userID == c.UserID && room == allowed
	}

	c.handleMessage([]byte(`{"type":"join_room","data":{"room_id":"`+allowed+`"}}`), authorize, logger.Discard())
	c.handleMessage([]byte(`{"type":"join_room","data":{"room_id":"authorities"}}`), authorize, logger.Discard())
	c.handleMessage([]byte(`not json`), authorize, logger.Discard())

	if h.RoomSize(allowed) != 1 {
		t.Error("authorized join was not applied")
	}
	if h.RoomSize(AuthoritiesRoom) != 0 {
		t.Error("unauthorized join was applied")
	}

	msgs := drain(t, c)
	if len(msgs) != 2 || msgs[0].Event != EventJoinedRoom || msgs[1].Event != EventError {
		t.Fatalf("replies = %+v, want joined_room then error", msgs)
	}

	c.handleMessage([]byte(`{"type":"leave_room","data":{"room_id":"`+allowed+`"}}`), authorize, logger.Discard())
	if h.RoomSize(allowed) != 0 {
		t.Error("leave_room was not applied")
	}
}

func TestClient_JoinChat(t *testing.T) {
	h := NewHub(logger.Discard())
	c := testClient(h, models.RoleTourist, 8)
	incidentID := uuid.New()

	c.handleMessage([]byte(`{"type":"join_chat","data":{"incident_id":"`+incidentID.String()+`"}}`),
		onlyRoom(IncidentRoom(incidentID)), logger.Discard())

	msgs := drain(t, c)
	if len(msgs) != 1 || msgs[0].Event != EventJoinedChat {
		t.Fatalf("replies = %+v, want joined_chat", msgs)
	}
	data := msgs[0].Data.(map[string]interface{})
	if data["incident_id"] != incidentID.String() {
		t.Errorf("joined_chat incident_id = %v", data["incident_id"])
	}
	if h.RoomSize(IncidentRoom(incidentID)) != 1 {
		t.Error("join_chat did not subscribe to the incident room")
	}

	c.handleMessage([]byte(`{"type":"join_chat","data":{"incident_id":"`+uuid.NewString()+`"}}`),
		onlyRoom(IncidentRoom(incidentID)), logger.Discard())
	if msgs := drain(t, c); len(msgs) != 1 || msgs[0].Event != EventError {
		t.Fatalf("denied join replies = %+v, want error", msgs)
	}
}

func TestClient_SendMessage(t *testing.T) {
	h := NewHub(logger.Discard())
	tourist := testClient(h, models.RoleTourist, 8)
	authority := testClient(h, models.RoleAuthority, 8)
	incidentID := uuid.New()
	room := IncidentRoom(incidentID)
	h.Join(room, tourist)
	h.Join(room, authority)

	// The client claims to be someone else; the server identity wins.
	raw := `{"type":"send_message","data":{"incident_id":"` + incidentID.String() +
		`","message":"  I am near the gate  ","sender_name":"Police","sender_role":"authority"}}`
	tourist.handleMessage([]byte(raw), onlyRoom(room), logger.Discard())

	for _, c := range []*Client{tourist, authority} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0].Event != EventNewMessage || msgs[0].Room != room {
			t.Fatalf("%s got %+v, want one new_message", c.Role, msgs)
		}
		data := msgs[0].Data.(map[string]interface{})
		if data["message"] != "I am near the gate" {
			t.Errorf("message = %v", data["message"])
		}
		if data["sender_name"] != tourist.Name || data["sender_role"] != string(models.RoleTourist) {
			t.Errorf("sender = %v/%v, want server identity", data["sender_name"], data["sender_role"])
		}
		if data["sender_id"] != tourist.UserID.String() {
			t.Errorf("sender_id = %v", data["sender_id"])
		}
	}
}

func TestClient_SendMessageRejected(t *testing.T) {
	h := NewHub(logger.Discard())
	member := testClient(h, models.RoleAuthority, 8)
	outsider := testClient(h, models.RoleTourist, 8)
	incidentID := uuid.New()
	room := IncidentRoom(incidentID)
	h.Join(room, member)

	deny := func(context.Context, uuid.UUID, models.Role, string) bool { return false }

	tests := []struct {
		name      string
		raw       string
		authorize RoomAuthorizer
	}{
		{"not a participant", `{"type":"send_message","data":{"incident_id":"` + incidentID.String() + `","message":"hi"}}`, deny},
		{"bad incident id", `{"type":"send_message","data":{"incident_id":"42","message":"hi"}}`, onlyRoom(room)},
		{"empty message", `{"type":"send_message","data":{"incident_id":"` + incidentID.String() + `","message":"   "}}`, onlyRoom(room)},
		{"unknown type", `{"type":"shout","data":{}}`, onlyRoom(room)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outsider.handleMessage([]byte(tt.raw), tt.authorize, logger.Discard())

			msgs := drain(t, outsider)
			if len(msgs) != 1 || msgs[0].Event != EventError {
				t.Fatalf("sender replies = %+v, want one error", msgs)
			}
			if got := drain(t, member); len(got) != 0 {
				t.Errorf("room received %+v", got)
			}
		})
	}
}
