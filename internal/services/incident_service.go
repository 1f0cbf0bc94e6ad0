package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/geo"
	"github.com/vikranta/safety/backend/internal/models"
	"github.com/vikranta/safety/backend/internal/realtime"
)

const (
	EventNewIncident      = "new_incident"
	EventIncidentUpdate   = "incident_update"
	EventNewMessage       = realtime.EventNewMessage
	EventQuickMessageNote = "quick_message_notification"

	panicDescription = "Emergency panic button pressed"
)

type ReportInput struct {
	Type        models.IncidentType
	Priority    models.Priority
	Latitude    float64
	Longitude   float64
	Address     string
	Description string
}

type RespondInput struct {
	Status  models.IncidentStatus
	Message string
}

// IncidentDetails carries the reporter profile when the caller is an authority.
type IncidentDetails struct {
	models.Incident
	User *models.User `json:"user,omitempty"`
}

type QuickMessageResult struct {
	SMSSent bool `json:"sms_sent"`
}

type IncidentService struct {
	incidents       IncidentStore
	users           UserStore
	notify          *Notifier
	emergencyNumber string
	now             func() time.Time
	log             logrus.FieldLogger
}

func NewIncidentService(incidents IncidentStore, users UserStore, notify *Notifier, emergencyNumber string, log logrus.FieldLogger) *IncidentService {
	return &IncidentService{
		incidents:       incidents,
		users:           users,
		notify:          notify,
		emergencyNumber: emergencyNumber,
		now:             time.Now,
		log:             log,
	}
}

// Panic raises a critical panic incident.
func (s *IncidentService) Panic(ctx context.Context, reporterID uuid.UUID, lat, lng float64, address, description string) (*models.Incident, error) {
	return s.Report(ctx, reporterID, ReportInput{
		Type:        models.IncidentPanic,
		Latitude:    lat,
		Longitude:   lng,
		Address:     address,
		Description: description,
	})
}

// Report creates an incident. The SOS text to the emergency number is sent
// before the insert commits; if it fails hard the incident does not exist.
func (s *IncidentService) Report(ctx context.Context, reporterID uuid.UUID, in ReportInput) (*models.Incident, error) {
	reporter, err := s.users.GetUserByID(ctx, reporterID)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		return nil, apperr.NotFound("user not found")
	}

	if !in.Type.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid incident type %q", in.Type))
	}
	if !geo.ValidCoordinate(in.Latitude, in.Longitude) {
		return nil, apperr.Validation("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}

	priority := in.Priority
	switch {
	case in.Type == models.IncidentPanic:
		priority = models.PriorityCritical
	case priority == "":
		priority = models.PriorityHigh
	case !priority.Valid():
		return nil, apperr.Validation(fmt.Sprintf("invalid priority %q", in.Priority))
	}

	if s.emergencyNumber == "" {
		return nil, apperr.New(apperr.KindIntegration, "emergency contact number is not configured")
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = fmt.Sprintf("Location at %.4f, %.4f", in.Latitude, in.Longitude)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" && in.Type == models.IncidentPanic {
		description = panicDescription
	}

	now := s.now().UTC()
	inc := &models.Incident{
		ID:          uuid.New(),
		UserID:      reporter.ID,
		Type:        in.Type,
		Status:      models.StatusActive,
		Priority:    priority,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Address:     address,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sos := sosMessage(reporter, address, s.now())
	sosSent := false
	err = s.incidents.CreateIncident(ctx, inc, func(ctx context.Context) error {
		o := s.notify.SMS(ctx, s.emergencyNumber, sos)
		if o.Failed() {
			return apperr.Wrap(apperr.KindIntegration, "failed to send emergency SMS notification", o.Err)
		}
		sosSent = o.Delivered
		return nil
	})
	if err != nil {
		entry := s.log.WithFields(logrus.Fields{"user_id": reporter.ID, "incident_id": inc.ID}).WithError(err)
		switch {
		case sosSent:
			// The SOS text is out but the incident was not stored.
			entry.Error("SOS sent but incident commit failed")
		case apperr.Is(err, apperr.KindIntegration):
			entry.Error("incident rolled back, SOS delivery failed")
		}
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"incident_id": inc.ID,
		"user_id":     reporter.ID,
		"type":        inc.Type,
		"priority":    inc.Priority,
	})
	log.Info("incident created")

	s.notify.Publish(realtime.AuthoritiesRoom, EventNewIncident, newIncidentPayload(inc, reporter))

	if reporter.EmergencyContact != "" {
		s.notify.SMS(ctx, reporter.EmergencyContact, fmt.Sprintf(
			"VIKRANTA ALERT: %s has triggered an emergency alert. Location: %s. Please check the app for details.",
			reporter.Name, address,
		))
	}

	return inc, nil
}

// Respond records an authority's action on an incident. A status change must
// be a forward transition; a message alone only updates the notes.
func (s *IncidentService) Respond(ctx context.Context, responder *models.User, id uuid.UUID, in RespondInput) (*models.Incident, error) {
	if !capabilityFor(responder, uuid.Nil).CanRespond() {
		return nil, apperr.Forbidden("only authorities can respond to incidents")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid status %q", in.Status))
	}
	message := strings.TrimSpace(in.Message)
	if in.Status == "" && message == "" {
		return nil, apperr.Validation("status or message is required")
	}

	inc, err := s.incidents.UpdateIncident(ctx, id, func(inc *models.Incident) error {
		now := s.now().UTC()
		if in.Status != "" {
			if !inc.Status.CanTransition(in.Status) {
				terr := &models.InvalidTransitionError{From: inc.Status, To: in.Status}
				return apperr.Wrap(apperr.KindConflict, terr.Error(), terr)
			}
			inc.Status = in.Status
			switch in.Status {
			case models.StatusAcknowledged, models.StatusEnRoute:
				if inc.AcknowledgedAt == nil {
					inc.AcknowledgedAt = &now
				}
			case models.StatusResolved, models.StatusFalseAlarm:
				inc.ResolvedAt = &now
			}
		}
		if message != "" {
			inc.ResponderNotes = message
		}
		assignee := responder.ID
		inc.AssignedTo = &assignee
		inc.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"incident_id":  inc.ID,
		"responder_id": responder.ID,
		"status":       inc.Status,
	}).Info("incident updated")

	s.notify.Publish(realtime.UserRoom(inc.UserID), EventIncidentUpdate, map[string]interface{}{
		"incident_id":    inc.ID,
		"status":         inc.Status,
		"message":        message,
		"authority_name": responder.Name,
		"timestamp":      s.now().UTC().Format(time.RFC3339),
	})

	reporter, err := s.users.GetUserByID(ctx, inc.UserID)
	if err != nil || reporter == nil {
		s.log.WithField("incident_id", inc.ID).WithError(err).Warn("reporter not found for status notification")
		return inc, nil
	}

	text := statusMessage(in.Status, responder.Name, message)
	if in.Status == "" {
		text = fmt.Sprintf("🚨 VIKRANTA - Authority %s:\n%s", responder.Name, message)
	}
	s.notify.SMS(ctx, reporter.Phone, text)
	s.notify.Push(ctx, reporter.FCMToken, "Incident update", text, map[string]string{
		"incident_id": inc.ID.String(),
		"status":      string(inc.Status),
	})

	return inc, nil
}

// SendQuickMessage relays an authority message to the reporter.
func (s *IncidentService) SendQuickMessage(ctx context.Context, responder *models.User, id uuid.UUID, message string) (*QuickMessageResult, error) {
	if !capabilityFor(responder, uuid.Nil).CanRespond() {
		return nil, apperr.Forbidden("only authorities can send quick messages")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}

	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, apperr.NotFound("incident not found")
	}

	ts := s.now().UTC().Format(time.RFC3339)
	s.notify.Publish(realtime.IncidentRoom(inc.ID), EventNewMessage, map[string]interface{}{
		"incident_id": inc.ID,
		"message":     message,
		"sender_name": responder.Name,
		"sender_role": models.RoleAuthority,
		"timestamp":   ts,
	})
	s.notify.Publish(realtime.UserRoom(inc.UserID), EventQuickMessageNote, map[string]interface{}{
		"incident_id":    inc.ID,
		"message":        message,
		"authority_name": responder.Name,
		"timestamp":      ts,
	})

	result := &QuickMessageResult{}
	reporter, err := s.users.GetUserByID(ctx, inc.UserID)
	if err != nil || reporter == nil {
		s.log.WithField("incident_id", inc.ID).WithError(err).Warn("reporter not found for quick message")
		return result, nil
	}
	o := s.notify.SMS(ctx, reporter.Phone, fmt.Sprintf("🚨 VIKRANTA - Authority %s:\n%s", responder.Name, message))
	result.SMSSent = o.Delivered
	return result, nil
}

func (s *IncidentService) GetDetails(ctx context.Context, requester *models.User, id uuid.UUID) (*IncidentDetails, error) {
	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, apperr.NotFound("incident not found")
	}

	capability := capabilityFor(requester, inc.UserID)
	if !capability.CanView() {
		return nil, apperr.Forbidden("not allowed to view this incident")
	}

	details := &IncidentDetails{Incident: *inc}
	if capability.IsAuthority {
		details.User, err = s.users.GetUserByID(ctx, inc.UserID)
		if err != nil {
			return nil, err
		}
	}
	return details, nil
}

// List returns incidents newest first. Tourists only see their own.
func (s *IncidentService) List(ctx context.Context, requester *models.User, status models.IncidentStatus) ([]IncidentDetails, error) {
	if requester == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid status %q", status))
	}

	capability := capabilityFor(requester, uuid.Nil)
	filter := models.IncidentFilter{Status: status}
	if !capability.CanListAll() {
		filter.UserID = &requester.ID
	}

	incidents, err := s.incidents.ListIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}

	reporters := make(map[uuid.UUID]*models.User)
	out := make([]IncidentDetails, 0, len(incidents))
	for _, inc := range incidents {
		d := IncidentDetails{Incident: inc}
		if capability.IsAuthority {
			u, ok := reporters[inc.UserID]
			if !ok {
				u, err = s.users.GetUserByID(ctx, inc.UserID)
				if err != nil {
					return nil, err
				}
				reporters[inc.UserID] = u
			}
			d.User = u
		}
		out = append(out, d)
	}
	return out, nil
}

// CanJoinRoom authorizes websocket room subscriptions.
func (s *IncidentService) CanJoinRoom(ctx context.Context, userID uuid.UUID, role models.Role, room string) bool {
	switch {
	case room == realtime.AuthoritiesRoom:
		return role == models.RoleAuthority
	case strings.HasPrefix(room, "user_"):
		return room == realtime.UserRoom(userID)
	case strings.HasPrefix(room, "incident_"):
		id, err := uuid.Parse(strings.TrimPrefix(room, "incident_"))
		if err != nil {
			return false
		}
		inc, err := s.incidents.GetIncident(ctx, id)
		if err != nil || inc == nil {
			return false
		}
		user := &models.User{ID: userID, Role: role}
		return capabilityFor(user, inc.UserID).CanView()
	}
	return false
}

func sosMessage(reporter *models.User, address string, at time.Time) string {
	return fmt.Sprintf("🚨 VIKRANTA SOS ALERT\nUser: %s (%s)\nLocation: %s\nTime: %s",
		reporter.Name, reporter.Phone, address, at.Format("03:04 PM"))
}

func statusMessage(status models.IncidentStatus, authority, message string) string {
	var text string
	switch status {
	case models.StatusAcknowledged:
		text = fmt.Sprintf("🚨 VIKRANTA: Authority %s has ACKNOWLEDGED your emergency alert. Help is on the way!", authority)
	case models.StatusEnRoute:
		text = fmt.Sprintf("🚑 VIKRANTA: Authority %s is EN ROUTE to your location. Stay calm and stay safe!", authority)
	case models.StatusResolved:
		text = fmt.Sprintf("✅ VIKRANTA: Your emergency has been marked as RESOLVED by %s. Stay safe!", authority)
	default:
		text = fmt.Sprintf("VIKRANTA: Status update - %s", status)
	}
	if message != "" {
		text += "\nMessage: " + message
	}
	return text
}

func newIncidentPayload(inc *models.Incident, reporter *models.User) map[string]interface{} {
	return map[string]interface{}{
		"incident_id": inc.ID,
		"type":        inc.Type,
		"priority":    inc.Priority,
		"status":      inc.Status,
		"description": inc.Description,
		"address":     inc.Address,
		"location": map[string]float64{
			"latitude":  inc.Latitude,
			"longitude": inc.Longitude,
		},
		"user": map[string]interface{}{
			"id":    reporter.ID,
			"name":  reporter.Name,
			"email": reporter.Email,
			"phone": reporter.Phone,
		},
		"timestamp": inc.CreatedAt.Format(time.RFC3339),
	}
}
