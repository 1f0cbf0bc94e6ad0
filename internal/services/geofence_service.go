package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/geo"
	"github.com/vikranta/safety/backend/internal/models"
)

// CreateGeofenceInput is shared by the admin endpoint, zone generation and the seed CLI.
type CreateGeofenceInput struct {
	Name           string           `json:"name" yaml:"name" binding:"required"`
	ZoneType       models.ZoneType  `json:"zone_type" yaml:"zone_type" binding:"required"`
	RiskLevel      models.RiskLevel `json:"risk_level" yaml:"risk_level" binding:"required"`
	Coordinates    [][]float64      `json:"coordinates" yaml:"coordinates" binding:"required"`
	Description    string           `json:"description" yaml:"description"`
	WarningMessage string           `json:"warning_message" yaml:"warning_message"`
}

// GeofenceView is a zone with its polygon exposed to API clients.
type GeofenceView struct {
	models.Geofence
	Polygon json.RawMessage `json:"polygon"`
}

func viewOf(gf models.Geofence) GeofenceView {
	return GeofenceView{Geofence: gf, Polygon: gf.Polygon}
}

type GeofenceService struct {
	store   GeofenceStore
	checker ContainmentChecker
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewGeofenceService(store GeofenceStore, checker ContainmentChecker, log logrus.FieldLogger) *GeofenceService {
	return &GeofenceService{store: store, checker: checker, now: time.Now, log: log}
}

func (s *GeofenceService) List(ctx context.Context, activeOnly bool) ([]GeofenceView, error) {
	zones, err := s.store.ListGeofences(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	views := make([]GeofenceView, 0, len(zones))
	for _, z := range zones {
		views = append(views, viewOf(z))
	}
	return views, nil
}

// Create validates and stores a new active zone. createdBy is nil for system-created zones.
func (s *GeofenceService) Create(ctx context.Context, createdBy *uuid.UUID, in CreateGeofenceInput) (*GeofenceView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if !in.ZoneType.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid zone_type %q", in.ZoneType))
	}
	if !in.RiskLevel.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid risk_level %q", in.RiskLevel))
	}

	poly, err := geo.PolygonFromCoordinates(in.Coordinates)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid polygon: "+err.Error(), err)
	}
	data, err := geo.MarshalPolygon(poly)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode polygon", err)
	}

	exists, err := s.store.GeofenceNameExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("geofence %q already exists", name))
	}

	now := s.now()
	gf := models.Geofence{
		ID:             uuid.New(),
		Name:           name,
		ZoneType:       in.ZoneType,
		RiskLevel:      in.RiskLevel,
		Polygon:        data,
		Description:    in.Description,
		WarningMessage: in.WarningMessage,
		Active:         true,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateGeofence(ctx, &gf); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"geofence_id": gf.ID, "name": gf.Name}).Info("geofence created")
	v := viewOf(gf)
	return &v, nil
}

// SetActive soft-enables or soft-disables a zone. Zones are never deleted.
func (s *GeofenceService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*GeofenceView, error) {
	gf, err := s.store.SetGeofenceActive(ctx, id, active)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("geofence not found")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"geofence_id": id, "active": active}).Info("geofence state changed")
	v := viewOf(*gf)
	return &v, nil
}

// Check returns alerts for every active zone containing the point.
func (s *GeofenceService) Check(ctx context.Context, lat, lng float64) ([]models.ZoneAlert, []SkippedZone, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, nil, apperr.Validation("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	res, err := s.checker.Contains(ctx, lat, lng)
	if err != nil {
		return nil, nil, err
	}
	return alertsFor(res.Zones), res.Skipped, nil
}
