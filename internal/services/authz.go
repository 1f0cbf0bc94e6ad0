package services

import (
	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/models"
)

// Capability is what a caller may do with one incident.
type Capability struct {
	IsOwner     bool
	IsAuthority bool
}

func capabilityFor(user *models.User, ownerID uuid.UUID) Capability {
	if user == nil {
		return Capability{}
	}
	return Capability{
		IsOwner:     user.ID == ownerID,
		IsAuthority: user.IsAuthority(),
	}
}

func (c Capability) CanView() bool {
	return c.IsOwner || c.IsAuthority
}

func (c Capability) CanRespond() bool {
	return c.IsAuthority
}

// CanListAll is true when the caller sees every reporter's incidents.
func (c Capability) CanListAll() bool {
	return c.IsAuthority
}
