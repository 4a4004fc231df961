package services

import (
	"testing"

	"pulsepath/internal/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGatewayStaticPermissions(t *testing.T) {
	gateway := NewRoleGateway()

	cases := []struct {
		role  models.Role
		event models.TransitionEvent
		want  bool
	}{
		{models.RoleHospital, models.EventAccept, true},
		{models.RolePatient, models.EventAccept, false},
		{models.RoleAmbulance, models.EventAccept, false},
		{models.RoleSystem, models.EventAccept, false},

		{models.RoleHospital, models.EventDecline, true},
		{models.RolePatient, models.EventDecline, true},
		{models.RoleAmbulance, models.EventDecline, false},

		{models.RoleHospital, models.EventDispatch, true},
		{models.RolePatient, models.EventDispatch, false},

		{models.RoleHospital, models.EventComplete, true},
		{models.RoleAmbulance, models.EventComplete, true},
		{models.RolePatient, models.EventComplete, false},
		{models.RoleSystem, models.EventComplete, false},

		{models.RolePatient, models.EventCancel, true},
		{models.RoleHospital, models.EventCancel, true},
		{models.RoleSystem, models.EventCancel, true},
		{models.RoleAmbulance, models.EventCancel, false},
	}

	for _, tc := range cases {
		got := gateway.Allows(tc.role, tc.event)
		assert.Equal(t, tc.want, got, "%s %s", tc.role, tc.event)
	}
}

func TestGatewayAuthorizeForbidden(t *testing.T) {
	gateway := NewRoleGateway()

	err := gateway.Authorize(primitive.NewObjectID(), models.RolePatient, models.EventDispatch)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))

	assert.NoError(t, gateway.Authorize(primitive.NewObjectID(), models.RoleHospital, models.EventDispatch))
}

func TestRuleForEdges(t *testing.T) {
	// Every status a cancel can leave from, and the ones it cannot.
	for _, from := range []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusAccepted,
		models.RequestStatusDispatched,
	} {
		rule, ok := ruleFor(models.EventCancel, from)
		assert.True(t, ok, "cancel from %s", from)
		assert.Equal(t, models.RequestStatusCancelled, rule.To)
	}
	for _, from := range []models.RequestStatus{
		models.RequestStatusCompleted,
		models.RequestStatusCancelled,
	} {
		_, ok := ruleFor(models.EventCancel, from)
		assert.False(t, ok, "cancel from %s", from)
	}

	// Accept only consumes pending.
	rule, ok := ruleFor(models.EventAccept, models.RequestStatusPending)
	assert.True(t, ok)
	assert.Equal(t, models.RequestStatusAccepted, rule.To)
	_, ok = ruleFor(models.EventAccept, models.RequestStatusAccepted)
	assert.False(t, ok)
}

func TestPatientCannotCancelDispatchedRule(t *testing.T) {
	rule, ok := ruleFor(models.EventCancel, models.RequestStatusDispatched)
	assert.True(t, ok)
	assert.False(t, roleAllowed(rule, models.RolePatient))
	assert.True(t, roleAllowed(rule, models.RoleHospital))
	assert.True(t, roleAllowed(rule, models.RoleSystem))
}
