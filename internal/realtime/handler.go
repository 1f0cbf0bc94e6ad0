package realtime

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/middleware"
	"github.com/vikranta/safety/backend/internal/models"
)

// UserLookup resolves the display name shown on chat messages.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Handler struct {
	hub       *Hub
	upgrader  websocket.Upgrader
	authorize RoomAuthorizer
	users     UserLookup
	log       logrus.FieldLogger
}

// NewHandler upgrades authenticated requests. An empty allowedOrigins list accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string, authorize RoomAuthorizer, users UserLookup, log logrus.FieldLogger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers passing the token as a subprotocol expect it echoed back.
			Subprotocols: []string{middleware.WebSocketProtocol},
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		authorize: authorize,
		users:     users,
		log:       log,
	}
}

// GET /ws
func (h *Handler) ServeWS(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"category": "unauthorized", "message": "authentication required"}})
		return
	}
	role := models.RoleTourist
	if r, ok := c.Get(middleware.ContextRole); ok {
		if rr, ok := r.(models.Role); ok {
			role = rr
		}
	}

	var name string
	if h.users != nil {
		user, err := h.users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			h.log.WithError(err).WithField("user_id", userID).Warn("websocket user lookup failed")
		} else if user != nil {
			name = user.Name
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, userID, role, name)
	h.hub.register(client)
	h.hub.Join(UserRoom(client.UserID), client)
	if client.Role == models.RoleAuthority {
		h.hub.Join(AuthoritiesRoom, client)
	}

	h.log.WithFields(logrus.Fields{"user_id": client.UserID, "role": client.Role}).Info("websocket connected")

	go client.writePump()
	go client.readPump(h.authorize, h.log)
}
