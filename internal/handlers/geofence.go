package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/middleware"
	"github.com/vikranta/safety/backend/internal/models"
	"github.com/vikranta/safety/backend/internal/services"
)

type GeofenceService interface {
	List(ctx context.Context, activeOnly bool) ([]services.GeofenceView, error)
	Create(ctx context.Context, createdBy *uuid.UUID, in services.CreateGeofenceInput) (*services.GeofenceView, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*services.GeofenceView, error)
	Check(ctx context.Context, lat, lng float64) ([]models.ZoneAlert, []services.SkippedZone, error)
}

type ZoneGenerator interface {
	Generate(ctx context.Context, createdBy *uuid.UUID, lat, lng, radiusKm float64) (*services.GenerateResult, error)
}

type GeofenceHandler struct {
	geofences GeofenceService
	generator ZoneGenerator
	log       logrus.FieldLogger
}

func NewGeofenceHandler(geofences GeofenceService, generator ZoneGenerator, log logrus.FieldLogger) *GeofenceHandler {
	return &GeofenceHandler{geofences: geofences, generator: generator, log: log}
}

type PointRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,lat"`
	Longitude *float64 `json:"longitude" binding:"required,lng"`
}

type GenerateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,lat"`
	Longitude *float64 `json:"longitude" binding:"required,lng"`
	Radius    float64  `json:"radius" binding:"omitempty,gt=0,lte=100"`
}

// GET /api/geofence/list?active=true
func (h *GeofenceHandler) List(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") != "false"

	zones, err := h.geofences.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"geofences": zones,
		"count":     len(zones),
	})
}

// POST /api/geofence/check
func (h *GeofenceHandler) Check(c *gin.Context) {
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	alerts, skipped, err := h.geofences.Check(c.Request.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inside_geofences": alerts,
		"count":            len(alerts),
		"skipped_zones":    skipped,
	})
}

// POST /api/geofence
func (h *GeofenceHandler) Create(c *gin.Context) {
	var req services.CreateGeofenceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	creator, _ := middleware.UserID(c)
	gf, err := h.geofences.Create(c.Request.Context(), &creator, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"geofence": gf})
}

// POST /api/geofence/:id/deactivate
func (h *GeofenceHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

// POST /api/geofence/:id/activate
func (h *GeofenceHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *GeofenceHandler) setActive(c *gin.Context, active bool) {
	id, err := paramUUID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	gf, err := h.geofences.SetActive(c.Request.Context(), id, active)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"geofence": gf})
}

// POST /api/geofence/generate-nearby
func (h *GeofenceHandler) GenerateNearby(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	var creator *uuid.UUID
	if id, ok := middleware.UserID(c); ok {
		creator = &id
	}

	res, err := h.generator.Generate(c.Request.Context(), creator, *req.Latitude, *req.Longitude, req.Radius)
	if err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   gin.H{"category": apperr.KindUnavailable, "message": apperr.PublicMessage(err)},
				"zones":   []services.GeofenceView{},
			})
			return
		}
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"zones":    res.Zones,
		"rejected": res.Rejected,
		"cached":   res.Cached,
		"location": gin.H{"latitude": *req.Latitude, "longitude": *req.Longitude},
	})
}
