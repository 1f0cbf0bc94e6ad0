package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(a *Auth) *gin.Engine {
	r := gin.New()
	r.GET("/private", a.AuthRequired(), func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id.String())
	})
	r.GET("/authority", a.AuthRequired(), AuthorityRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/optional", a.OptionalAuth(), func(c *gin.Context) {
		if _, ok := UserID(c); ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	a := NewAuth("test-secret")
	r := newRouter(a)
	tourist := uuid.New()

	touristToken, err := a.NewToken(tourist, models.RoleTourist, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	authorityToken, _ := a.NewToken(uuid.New(), models.RoleAuthority, time.Hour)
	expired, _ := a.NewToken(tourist, models.RoleTourist, -time.Minute)
	foreign, _ := NewAuth("other-secret").NewToken(tourist, models.RoleAuthority, time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"missing header", "/private", "", http.StatusUnauthorized, ""},
		{"not bearer", "/private", touristToken, http.StatusUnauthorized, ""},
		{"valid tourist", "/private", "Bearer " + touristToken, http.StatusOK, tourist.String()},
		{"expired", "/private", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong secret", "/private", "Bearer " + foreign, http.StatusUnauthorized, ""},
		{"tourist on authority route", "/authority", "Bearer " + touristToken, http.StatusForbidden, ""},
		{"authority on authority route", "/authority", "Bearer " + authorityToken, http.StatusNoContent, ""},
		{"optional anonymous", "/optional", "", http.StatusOK, "anonymous"},
		{"optional with token", "/optional", "Bearer " + touristToken, http.StatusOK, "user"},
		{"optional with bad token", "/optional", "Bearer junk", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestWebSocketAuth(t *testing.T) {
	a := NewAuth("test-secret")
	user := uuid.New()
	token, _ := a.NewToken(user, models.RoleAuthority, time.Hour)

	r := gin.New()
	r.GET("/ws", a.WebSocketAuth(), func(c *gin.Context) {
		id, _ := UserID(c)
		role, _ := c.Get(ContextRole)
		c.String(http.StatusOK, id.String()+" "+string(role.(models.Role)))
	})

	tests := []struct {
		name     string
		path     string
		header   string
		protocol string
		status   int
	}{
		{"authorization header", "/ws", "Bearer " + token, "", http.StatusOK},
		{"query parameter", "/ws?token=" + token, "", "", http.StatusOK},
		{"subprotocol", "/ws", "", "bearer, " + token, http.StatusOK},
		{"subprotocol without bearer marker", "/ws", "", token, http.StatusUnauthorized},
		{"invalid query token", "/ws?token=junk", "", "", http.StatusUnauthorized},
		{"no token", "/ws", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.protocol != "" {
				req.Header.Set("Sec-WebSocket-Protocol", tt.protocol)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusOK && w.Body.String() != user.String()+" authority" {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}
