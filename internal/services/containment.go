package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/geo"
	"github.com/vikranta/safety/backend/internal/models"
)

// SkippedZone is an active zone whose stored polygon could not be used.
type SkippedZone struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
}

type Containment struct {
	Zones   []models.Geofence
	Skipped []SkippedZone
}

// ContainmentChecker finds the active zones containing a point.
// Implementations may index zones; results must match a full scan.
type ContainmentChecker interface {
	Contains(ctx context.Context, lat, lng float64) (*Containment, error)
}

type ZoneLister interface {
	ListActiveGeofences(ctx context.Context) ([]models.Geofence, error)
}

// ScanChecker tests every active zone on each call so that zone edits are
// visible immediately.
type ScanChecker struct {
	zones ZoneLister
	log   logrus.FieldLogger
}

func NewScanChecker(zones ZoneLister, log logrus.FieldLogger) *ScanChecker {
	return &ScanChecker{zones: zones, log: log}
}

func (s *ScanChecker) Contains(ctx context.Context, lat, lng float64) (*Containment, error) {
	zones, err := s.zones.ListActiveGeofences(ctx)
	if err != nil {
		return nil, err
	}

	result := &Containment{}
	for _, zone := range zones {
		poly, err := geo.ParsePolygon(zone.Polygon)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"geofence_id": zone.ID,
				"name":        zone.Name,
			}).WithError(err).Warn("skipping geofence with unusable polygon")
			result.Skipped = append(result.Skipped, SkippedZone{ID: zone.ID, Name: zone.Name, Reason: err.Error()})
			continue
		}
		if geo.Contains(poly, lat, lng) {
			result.Zones = append(result.Zones, zone)
		}
	}
	return result, nil
}

// AlertFor builds the alert shown to a tourist inside zone
func AlertFor(zone models.Geofence) models.ZoneAlert {
	warning := zone.WarningMessage
	if warning == "" {
		warning = "You are entering " + zone.Name
	}
	return models.ZoneAlert{
		ID:             zone.ID,
		Name:           zone.Name,
		ZoneType:       zone.ZoneType,
		RiskLevel:      zone.RiskLevel,
		WarningMessage: warning,
		Description:    zone.Description,
	}
}

func alertsFor(zones []models.Geofence) []models.ZoneAlert {
	alerts := make([]models.ZoneAlert, 0, len(zones))
	for _, z := range zones {
		alerts = append(alerts, AlertFor(z))
	}
	return alerts
}
