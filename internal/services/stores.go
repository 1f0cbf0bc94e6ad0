package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/models"
)

// Storage contracts implemented by database.PostgresDB.

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type GeofenceStore interface {
	CreateGeofence(ctx context.Context, gf *models.Geofence) error
	GetGeofence(ctx context.Context, id uuid.UUID) (*models.Geofence, error)
	GeofenceNameExists(ctx context.Context, name string) (bool, error)
	ListGeofences(ctx context.Context, activeOnly bool) ([]models.Geofence, error)
	ListActiveGeofences(ctx context.Context) ([]models.Geofence, error)
	SetGeofenceActive(ctx context.Context, id uuid.UUID, active bool) (*models.Geofence, error)
}

type LocationStore interface {
	CreateLocationSample(ctx context.Context, s *models.LocationSample) error
	GetLocationHistory(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.LocationSample, error)
	GetLatestTouristPositions(ctx context.Context) ([]models.TouristPosition, error)
}

type IncidentStore interface {
	CreateIncident(ctx context.Context, inc *models.Incident, confirm func(ctx context.Context) error) error
	UpdateIncident(ctx context.Context, id uuid.UUID, mutate func(inc *models.Incident) error) (*models.Incident, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error)
}

// ZoneCache holds generated zone batches. RedisDB satisfies it.
type ZoneCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
