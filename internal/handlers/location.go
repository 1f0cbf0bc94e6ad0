package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/middleware"
	"github.com/vikranta/safety/backend/internal/models"
	"github.com/vikranta/safety/backend/internal/services"
)

type LocationService interface {
	Record(ctx context.Context, userID *uuid.UUID, lat, lng float64, accuracy *float64) (*services.RecordResult, error)
	History(ctx context.Context, userID uuid.UUID, hours int) ([]models.LocationSample, error)
	LatestPositions(ctx context.Context) ([]models.TouristPosition, error)
}

// RateLimiter is satisfied by database.RedisDB.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, window time.Duration, limit int) (bool, error)
}

type LocationHandler struct {
	locations LocationService
	limiter   RateLimiter
	limit     int
	window    time.Duration
	log       logrus.FieldLogger
}

func NewLocationHandler(locations LocationService, limiter RateLimiter, limit int, window time.Duration, log logrus.FieldLogger) *LocationHandler {
	return &LocationHandler{
		locations: locations,
		limiter:   limiter,
		limit:     limit,
		window:    window,
		log:       log,
	}
}

type LocationUpdateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,lat"`
	Longitude *float64 `json:"longitude" binding:"required,lng"`
	Accuracy  *float64 `json:"accuracy,omitempty" binding:"omitempty,gte=0"`
}

// POST /api/location/update
func (h *LocationHandler) UpdateLocation(c *gin.Context) {
	var req LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	var userID *uuid.UUID
	key := "location:ip:" + c.ClientIP()
	if id, ok := middleware.UserID(c); ok {
		userID = &id
		key = "location:user:" + id.String()
	}

	// A limit of 0 disables limiting. Fails open: a Redis outage must not block position reports.
	if h.limit > 0 {
		allowed, err := h.limiter.CheckRateLimit(c.Request.Context(), key, h.window, h.limit)
		if err != nil {
			h.log.WithError(err).Warn("rate limit check failed")
		} else if !allowed {
			respondError(c, h.log, apperr.New(apperr.KindRateLimited, "rate limit exceeded"))
			return
		}
	}

	res, err := h.locations.Record(c.Request.Context(), userID, *req.Latitude, *req.Longitude, req.Accuracy)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Location updated",
		"location":      res.Sample,
		"alerts":        res.Alerts,
		"skipped_zones": res.Skipped,
	})
}

// GET /api/location/history?hours=24
func (h *LocationHandler) History(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	hours := 0
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, h.log, apperr.Validation("hours must be a positive integer"))
			return
		}
		hours = n
	}

	samples, err := h.locations.History(c.Request.Context(), userID, hours)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"locations": samples,
		"count":     len(samples),
	})
}

// GET /api/location/all-tourists
func (h *LocationHandler) AllTourists(c *gin.Context) {
	positions, err := h.locations.LatestPositions(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tourists": positions,
		"count":    len(positions),
	})
}
