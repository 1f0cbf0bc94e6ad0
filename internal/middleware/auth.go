package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/models"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Claims carried by access tokens
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// NewToken signs an HS256 token for userID.
func (a *Auth) NewToken(userID uuid.UUID, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) parse(header string) (uuid.UUID, models.Role, error) {
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header || tokenString == "" {
		return uuid.Nil, "", errors.New("bearer token required")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return uuid.Nil, "", errors.New("invalid token claims")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid user ID in token")
	}
	role := claims.Role
	if role != models.RoleAuthority {
		role = models.RoleTourist
	}
	return userID, role, nil
}

func abort(c *gin.Context, status int, category, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"category": category, "message": message}})
}

// AuthRequired validates the bearer token and sets user_id and role on the context.
func (a *Auth) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header required")
			return
		}

		userID, role, err := a.parse(authHeader)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// WebSocketProtocol is the subprotocol a browser offers alongside its token,
// as in new WebSocket(url, ["bearer", token]).
const WebSocketProtocol = "bearer"

// WebSocketAuth is AuthRequired for the upgrade request. Browsers cannot set
// headers on a WebSocket, so the token may also come from the token query
// parameter or from the Sec-WebSocket-Protocol list after "bearer".
func (a *Auth) WebSocketAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if token := wsToken(c); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "token required")
			return
		}

		userID, role, err := a.parse(authHeader)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

func wsToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	var protocols []string
	for _, h := range c.Request.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			protocols = append(protocols, strings.TrimSpace(p))
		}
	}
	for i := 0; i+1 < len(protocols); i++ {
		if protocols[i] == WebSocketProtocol {
			return protocols[i+1]
		}
	}
	return ""
}

// OptionalAuth sets the user when a valid token is present and rejects only malformed ones.
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		userID, role, err := a.parse(authHeader)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// AuthorityRequired must run after AuthRequired.
func AuthorityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		if r, ok := role.(models.Role); !ok || r != models.RoleAuthority {
			abort(c, http.StatusForbidden, "forbidden", "authority access required")
			return
		}

		c.Next()
	}
}

// UserID returns the authenticated user, if any.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
