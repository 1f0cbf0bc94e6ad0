package models

import "fmt"

type IncidentStatus string

const (
	StatusActive       IncidentStatus = "active"
	StatusAcknowledged IncidentStatus = "acknowledged"
	StatusEnRoute      IncidentStatus = "en_route"
	StatusResolved     IncidentStatus = "resolved"
	StatusFalseAlarm   IncidentStatus = "false_alarm"
)

// forward transitions; anything not listed is rejected
var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	StatusActive:       {StatusAcknowledged, StatusEnRoute, StatusResolved, StatusFalseAlarm},
	StatusAcknowledged: {StatusEnRoute, StatusResolved},
	StatusEnRoute:      {StatusResolved},
}

func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusEnRoute, StatusResolved, StatusFalseAlarm:
		return true
	}
	return false
}

func (s IncidentStatus) Terminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm
}

// CanTransition reports whether an incident in status s may move to next.
func (s IncidentStatus) CanTransition(next IncidentStatus) bool {
	for _, allowed := range incidentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError is returned when a status change is not a forward step
type InvalidTransitionError struct {
	From IncidentStatus
	To   IncidentStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("incident is already %s", e.From)
	}
	return fmt.Sprintf("cannot change incident status from %s to %s", e.From, e.To)
}
