package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/middleware"
	"github.com/vikranta/safety/backend/internal/models"
)

type ProfileStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error)
}

// ProfileHandler lets a user maintain the contact details used for notifications.
type ProfileHandler struct {
	users ProfileStore
	log   logrus.FieldLogger
}

func NewProfileHandler(users ProfileStore, log logrus.FieldLogger) *ProfileHandler {
	return &ProfileHandler{users: users, log: log}
}

// GET /api/user/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if user == nil {
		respondError(c, h.log, apperr.NotFound("user not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// PUT /api/user/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		respondError(c, h.log, apperr.Validation("name must not be empty"))
		return
	}
	if req.Name == nil && req.Phone == nil && req.EmergencyContact == nil && req.FCMToken == nil {
		respondError(c, h.log, apperr.Validation("no fields to update"))
		return
	}

	userID, _ := middleware.UserID(c)
	user, err := h.users.UpdateUserProfile(c.Request.Context(), userID, req)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			err = apperr.NotFound("user not found")
		}
		respondError(c, h.log, err)
		return
	}

	h.log.WithField("user_id", userID).Info("profile updated")
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}
