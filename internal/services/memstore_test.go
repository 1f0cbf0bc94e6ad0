package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/models"
)

// memStore is an in-memory stand-in for PostgresDB.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	geofences map[uuid.UUID]models.Geofence
	samples   []models.LocationSample
	incidents map[uuid.UUID]models.Incident
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uuid.UUID]*models.User),
		geofences: make(map[uuid.UUID]models.Geofence),
		incidents: make(map[uuid.UUID]models.Incident),
	}
}

func (m *memStore) addUser(name string, role models.Role) *models.User {
	u := &models.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     name + "@example.com",
		Phone:     "9876543210",
		Role:      role,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateGeofence(_ context.Context, gf *models.Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.geofences {
		if existing.Name == gf.Name {
			return apperr.New(apperr.KindConflict, "already exists")
		}
	}
	m.geofences[gf.ID] = *gf
	return nil
}

func (m *memStore) GetGeofence(_ context.Context, id uuid.UUID) (*models.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gf, ok := m.geofences[id]
	if !ok {
		return nil, nil
	}
	return &gf, nil
}

func (m *memStore) GeofenceNameExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, gf := range m.geofences {
		if gf.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListGeofences(_ context.Context, activeOnly bool) ([]models.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Geofence
	for _, gf := range m.geofences {
		if activeOnly && !gf.Active {
			continue
		}
		out = append(out, gf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ListActiveGeofences(ctx context.Context) ([]models.Geofence, error) {
	return m.ListGeofences(ctx, true)
}

func (m *memStore) SetGeofenceActive(_ context.Context, id uuid.UUID, active bool) (*models.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gf, ok := m.geofences[id]
	if !ok {
		return nil, apperr.NotFound("not found")
	}
	gf.Active = active
	m.geofences[id] = gf
	return &gf, nil
}

func (m *memStore) CreateLocationSample(_ context.Context, s *models.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, *s)
	return nil
}

func (m *memStore) GetLocationHistory(_ context.Context, userID uuid.UUID, since time.Time) ([]models.LocationSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LocationSample
	for _, s := range m.samples {
		if s.UserID == userID && !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) GetLatestTouristPositions(_ context.Context) ([]models.TouristPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[uuid.UUID]models.LocationSample)
	for _, s := range m.samples {
		if cur, ok := latest[s.UserID]; !ok || !s.Timestamp.Before(cur.Timestamp) {
			latest[s.UserID] = s
		}
	}
	var out []models.TouristPosition
	for id, s := range latest {
		u, ok := m.users[id]
		if !ok || u.Role != models.RoleTourist {
			continue
		}
		out = append(out, models.TouristPosition{
			UserID: id, UserName: u.Name, UserEmail: u.Email, UserPhone: u.Phone,
			Latitude: s.Latitude, Longitude: s.Longitude, Accuracy: s.Accuracy, Timestamp: s.Timestamp,
		})
	}
	return out, nil
}

func (m *memStore) CreateIncident(ctx context.Context, inc *models.Incident, confirm func(ctx context.Context) error) error {
	if confirm != nil {
		if err := confirm(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[inc.ID] = *inc
	return nil
}

func (m *memStore) UpdateIncident(_ context.Context, id uuid.UUID, mutate func(inc *models.Incident) error) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, apperr.NotFound("incident not found")
	}
	if err := mutate(&inc); err != nil {
		return nil, err
	}
	m.incidents[id] = inc
	return &inc, nil
}

func (m *memStore) GetIncident(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, nil
	}
	return &inc, nil
}

func (m *memStore) ListIncidents(_ context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Incident
	for _, inc := range m.incidents {
		if filter.UserID != nil && inc.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && inc.Status != filter.Status {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) incidentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.incidents)
}

// memCache satisfies ZoneCache without TTL handling.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}
