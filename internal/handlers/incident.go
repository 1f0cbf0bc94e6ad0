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

type IncidentService interface {
	Panic(ctx context.Context, reporterID uuid.UUID, lat, lng float64, address, description string) (*models.Incident, error)
	Report(ctx context.Context, reporterID uuid.UUID, in services.ReportInput) (*models.Incident, error)
	Respond(ctx context.Context, responder *models.User, id uuid.UUID, in services.RespondInput) (*models.Incident, error)
	SendQuickMessage(ctx context.Context, responder *models.User, id uuid.UUID, message string) (*services.QuickMessageResult, error)
	GetDetails(ctx context.Context, requester *models.User, id uuid.UUID) (*services.IncidentDetails, error)
	List(ctx context.Context, requester *models.User, status models.IncidentStatus) ([]services.IncidentDetails, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type IncidentHandler struct {
	incidents IncidentService
	users     UserStore
	log       logrus.FieldLogger
}

func NewIncidentHandler(incidents IncidentService, users UserStore, log logrus.FieldLogger) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, users: users, log: log}
}

type PanicRequest struct {
	Latitude    *float64 `json:"latitude" binding:"required,lat"`
	Longitude   *float64 `json:"longitude" binding:"required,lng"`
	Address     string   `json:"address"`
	Description string   `json:"description"`
}

type ReportRequest struct {
	Type        models.IncidentType `json:"type" binding:"required"`
	Priority    models.Priority     `json:"priority"`
	Latitude    *float64            `json:"latitude" binding:"required,lat"`
	Longitude   *float64            `json:"longitude" binding:"required,lng"`
	Address     string              `json:"address"`
	Description string              `json:"description"`
}

type RespondRequest struct {
	Status  models.IncidentStatus `json:"status"`
	Message string                `json:"message"`
}

type QuickMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// currentUser loads the caller's profile. Tokens for deleted users are rejected.
func (h *IncidentHandler) currentUser(c *gin.Context) (*models.User, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return nil, apperr.Unauthorized("authentication required")
	}
	user, err := h.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthorized("user not found")
	}
	return user, nil
}

// POST /api/incident/panic
func (h *IncidentHandler) Panic(c *gin.Context) {
	var req PanicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	userID, _ := middleware.UserID(c)
	inc, err := h.incidents.Panic(c.Request.Context(), userID, *req.Latitude, *req.Longitude, req.Address, req.Description)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Emergency alert sent successfully",
		"incident_id": inc.ID,
		"status":      inc.Status,
		"priority":    inc.Priority,
	})
}

// POST /api/incident/report
func (h *IncidentHandler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}

	userID, _ := middleware.UserID(c)
	inc, err := h.incidents.Report(c.Request.Context(), userID, services.ReportInput{
		Type:        req.Type,
		Priority:    req.Priority,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Address:     req.Address,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Incident reported successfully",
		"incident": inc,
	})
}

// GET /api/incident/list?status=active
func (h *IncidentHandler) List(c *gin.Context) {
	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	incidents, err := h.incidents.List(c.Request.Context(), user, models.IncidentStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

// GET /api/incident/:id
func (h *IncidentHandler) Get(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	details, err := h.incidents.GetDetails(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident": details})
}

// POST /api/incident/:id/respond
func (h *IncidentHandler) Respond(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}
	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	inc, err := h.incidents.Respond(c.Request.Context(), user, id, services.RespondInput{
		Status:  req.Status,
		Message: req.Message,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Response recorded successfully",
		"incident": inc,
	})
}

// POST /api/incident/:id/send-message
func (h *IncidentHandler) SendMessage(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req QuickMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.log, err)
		return
	}
	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res, err := h.incidents.SendQuickMessage(c.Request.Context(), user, id, req.Message)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Quick message sent successfully",
		"sms_sent": res.SMSSent,
	})
}
