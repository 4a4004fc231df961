package services

import (
	"pulsepath/internal/models"
)

// transitionRule is one edge of the request state machine: the event, the
// source status it consumes, the status it produces, and the roles that may
// drive it from that source.
type transitionRule struct {
	To    models.RequestStatus
	Roles []models.Role
}

// transitionTable is the authoritative state machine. An (event, from) pair
// absent from the table is not a transition; attempts against a terminal
// status surface as InvalidTransition, everything else as StaleState.
var transitionTable = map[models.TransitionEvent]map[models.RequestStatus]transitionRule{
	models.EventAccept: {
		models.RequestStatusPending: {
			To:    models.RequestStatusAccepted,
			Roles: []models.Role{models.RoleHospital},
		},
	},
	models.EventDecline: {
		models.RequestStatusPending: {
			To:    models.RequestStatusCancelled,
			Roles: []models.Role{models.RoleHospital, models.RolePatient},
		},
	},
	models.EventDispatch: {
		models.RequestStatusAccepted: {
			To:    models.RequestStatusDispatched,
			Roles: []models.Role{models.RoleHospital},
		},
	},
	models.EventComplete: {
		models.RequestStatusDispatched: {
			To:    models.RequestStatusCompleted,
			Roles: []models.Role{models.RoleHospital, models.RoleAmbulance},
		},
	},
	models.EventCancel: {
		models.RequestStatusPending: {
			To:    models.RequestStatusCancelled,
			Roles: []models.Role{models.RoleHospital, models.RolePatient, models.RoleSystem},
		},
		models.RequestStatusAccepted: {
			To:    models.RequestStatusCancelled,
			Roles: []models.Role{models.RoleHospital, models.RolePatient, models.RoleSystem},
		},
		models.RequestStatusDispatched: {
			To:    models.RequestStatusCancelled,
			Roles: []models.Role{models.RoleHospital, models.RoleSystem},
		},
	},
}

// ruleFor resolves the rule for event from the given status.
func ruleFor(event models.TransitionEvent, from models.RequestStatus) (transitionRule, bool) {
	rules, ok := transitionTable[event]
	if !ok {
		return transitionRule{}, false
	}
	rule, ok := rules[from]
	return rule, ok
}

func roleAllowed(rule transitionRule, role models.Role) bool {
	for _, r := range rule.Roles {
		if r == role {
			return true
		}
	}
	return false
}
