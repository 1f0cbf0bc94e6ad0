package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/geo"
	"github.com/vikranta/safety/backend/internal/models"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
)

type RecordResult struct {
	Sample  models.LocationSample `json:"location"`
	Alerts  []models.ZoneAlert    `json:"alerts"`
	Skipped []SkippedZone         `json:"skipped_zones,omitempty"`
}

type LocationService struct {
	store   LocationStore
	checker ContainmentChecker
	// anonymousUser receives samples posted without a token. nil rejects them.
	anonymousUser *uuid.UUID
	now           func() time.Time
	log           logrus.FieldLogger
}

func NewLocationService(store LocationStore, checker ContainmentChecker, anonymousUser *uuid.UUID, log logrus.FieldLogger) *LocationService {
	return &LocationService{
		store:         store,
		checker:       checker,
		anonymousUser: anonymousUser,
		now:           time.Now,
		log:           log,
	}
}

// Record stores one sample and returns alerts for the zones containing it.
// userID is nil for unauthenticated callers.
func (s *LocationService) Record(ctx context.Context, userID *uuid.UUID, lat, lng float64, accuracy *float64) (*RecordResult, error) {
	owner := userID
	if owner == nil {
		if s.anonymousUser == nil {
			return nil, apperr.Unauthorized("authentication required")
		}
		owner = s.anonymousUser
	}

	if !geo.ValidCoordinate(lat, lng) {
		return nil, apperr.Validation("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	if accuracy != nil && *accuracy < 0 {
		return nil, apperr.Validation("accuracy must not be negative")
	}

	sample := models.LocationSample{
		ID:        uuid.New(),
		UserID:    *owner,
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  accuracy,
		Timestamp: s.now().UTC(),
	}

	// Zones are resolved first so a failed lookup stores nothing.
	res, err := s.checker.Contains(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateLocationSample(ctx, &sample); err != nil {
		return nil, err
	}

	if len(res.Zones) > 0 {
		s.log.WithFields(logrus.Fields{
			"user_id": sample.UserID,
			"zones":   len(res.Zones),
		}).Info("location inside geofences")
	}

	return &RecordResult{
		Sample:  sample,
		Alerts:  alertsFor(res.Zones),
		Skipped: res.Skipped,
	}, nil
}

// History returns the user's samples from the last hours, oldest first.
// hours <= 0 means the default window.
func (s *LocationService) History(ctx context.Context, userID uuid.UUID, hours int) ([]models.LocationSample, error) {
	if hours <= 0 {
		hours = defaultHistoryHours
	}
	if hours > maxHistoryHours {
		return nil, apperr.Validation(fmt.Sprintf("hours must be at most %d", maxHistoryHours))
	}
	since := s.now().Add(-time.Duration(hours) * time.Hour)
	samples, err := s.store.GetLocationHistory(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if samples == nil {
		samples = []models.LocationSample{}
	}
	return samples, nil
}

// LatestPositions returns the newest sample per tourist, annotated with a last-seen string.
func (s *LocationService) LatestPositions(ctx context.Context) ([]models.TouristPosition, error) {
	positions, err := s.store.GetLatestTouristPositions(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range positions {
		positions[i].LastSeen = LastSeen(now.Sub(positions[i].Timestamp))
	}
	if positions == nil {
		positions = []models.TouristPosition{}
	}
	return positions, nil
}

// LastSeen renders an age like "12s ago", "5m ago", "3h ago" or "2d ago".
func LastSeen(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age/time.Second))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(age/(24*time.Hour)))
	}
}
