package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes tourists from responding authorities
type Role string

const (
	RoleTourist   Role = "tourist"
	RoleAuthority Role = "authority"
)

// User is a registered tourist or authority account
type User struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	Name             string    `json:"name" db:"name"`
	Phone            string    `json:"phone" db:"phone"`
	Role             Role      `json:"role" db:"role"`
	EmergencyContact string    `json:"emergency_contact,omitempty" db:"emergency_contact"`
	FCMToken         string    `json:"-" db:"fcm_token"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

func (u *User) IsAuthority() bool {
	return u != nil && u.Role == RoleAuthority
}

// ProfileUpdate holds the user-editable fields. nil leaves a field unchanged.
type ProfileUpdate struct {
	Name             *string `json:"name"`
	Phone            *string `json:"phone"`
	EmergencyContact *string `json:"emergency_contact"`
	FCMToken         *string `json:"fcm_token"`
}

type ZoneType string

const (
	ZoneSafe        ZoneType = "safe_zone"
	ZoneCaution     ZoneType = "caution_zone"
	ZoneRestricted  ZoneType = "restricted"
	ZoneTouristArea ZoneType = "tourist_area"
	ZoneOther       ZoneType = "other"
)

func (z ZoneType) Valid() bool {
	switch z {
	case ZoneSafe, ZoneCaution, ZoneRestricted, ZoneTouristArea, ZoneOther:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Geofence is a named polygonal safety zone.
// Polygon holds the GeoJSON Polygon geometry exactly as stored; it is parsed
// lazily so that one corrupt row cannot break a whole containment query.
type Geofence struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	ZoneType       ZoneType        `json:"zone_type" db:"zone_type"`
	RiskLevel      RiskLevel       `json:"risk_level" db:"risk_level"`
	Polygon        json.RawMessage `json:"-" db:"polygon_data"`
	Description    string          `json:"description" db:"description"`
	WarningMessage string          `json:"warning_message" db:"warning_message"`
	Active         bool            `json:"active" db:"active"`
	CreatedBy      *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ZoneAlert is returned to a tourist for every active zone containing their position
type ZoneAlert struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	ZoneType       ZoneType  `json:"zone_type"`
	RiskLevel      RiskLevel `json:"risk_level"`
	WarningMessage string    `json:"warning_message"`
	Description    string    `json:"description"`
}

// LocationSample is one observed position of a user. Samples are append-only.
type LocationSample struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty" db:"accuracy"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// TouristPosition is the most recent sample of a tourist joined with their profile
type TouristPosition struct {
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	UserPhone string    `json:"user_phone"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	LastSeen  string    `json:"last_seen"`
}

type IncidentType string

const (
	IncidentPanic   IncidentType = "panic"
	IncidentMedical IncidentType = "medical"
	IncidentTheft   IncidentType = "theft"
	IncidentOther   IncidentType = "other"
)

func (t IncidentType) Valid() bool {
	switch t {
	case IncidentPanic, IncidentMedical, IncidentTheft, IncidentOther:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Incident is a reported emergency. Status changes follow the lifecycle in incident_state.go.
type Incident struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	UserID         uuid.UUID      `json:"user_id" db:"user_id"`
	Type           IncidentType   `json:"type" db:"type"`
	Status         IncidentStatus `json:"status" db:"status"`
	Priority       Priority       `json:"priority" db:"priority"`
	Latitude       float64        `json:"latitude" db:"latitude"`
	Longitude      float64        `json:"longitude" db:"longitude"`
	Address        string         `json:"address" db:"address"`
	Description    string         `json:"description" db:"description"`
	ResponderNotes string         `json:"responder_notes" db:"responder_notes"`
	AssignedTo     *uuid.UUID     `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}

// IncidentFilter narrows ListIncidents. A nil UserID means every reporter.
type IncidentFilter struct {
	UserID *uuid.UUID
	Status IncidentStatus
}
