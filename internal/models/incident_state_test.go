package models

import "testing"

func TestIncidentStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from IncidentStatus
		to   IncidentStatus
		want bool
	}{
		{StatusActive, StatusAcknowledged, true},
		{StatusActive, StatusEnRoute, true},
		{StatusActive, StatusResolved, true},
		{StatusActive, StatusFalseAlarm, true},
		{StatusAcknowledged, StatusEnRoute, true},
		{StatusAcknowledged, StatusResolved, true},
		{StatusEnRoute, StatusResolved, true},

		{StatusActive, StatusActive, false},
		{StatusAcknowledged, StatusActive, false},
		{StatusAcknowledged, StatusFalseAlarm, false},
		{StatusEnRoute, StatusAcknowledged, false},
		{StatusResolved, StatusAcknowledged, false},
		{StatusResolved, StatusFalseAlarm, false},
		{StatusFalseAlarm, StatusActive, false},
		{StatusFalseAlarm, StatusResolved, false},
		{StatusActive, IncidentStatus("closed"), false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIncidentStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []IncidentStatus{StatusResolved, StatusFalseAlarm} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []IncidentStatus{StatusActive, StatusAcknowledged, StatusEnRoute} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestInvalidTransitionError_Message(t *testing.T) {
	t.Parallel()

	err := &InvalidTransitionError{From: StatusResolved, To: StatusAcknowledged}
	if got := err.Error(); got != "incident is already resolved" {
		t.Fatalf("unexpected message %q", got)
	}

	err = &InvalidTransitionError{From: StatusEnRoute, To: StatusActive}
	if got := err.Error(); got != "cannot change incident status from en_route to active" {
		t.Fatalf("unexpected message %q", got)
	}
}
