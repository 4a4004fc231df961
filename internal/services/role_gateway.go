package services

import (
	"pulsepath/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleGateway is the static pre-check in front of the transition authority:
// can this role ever drive this event, regardless of request state. The
// dynamic state match happens later, inside the store's compare-and-swap.
type RoleGateway struct {
	allowed map[models.TransitionEvent]map[models.Role]bool
}

// NewRoleGateway derives the static permission set from the transition
// table, so the two can never drift apart.
func NewRoleGateway() *RoleGateway {
	allowed := make(map[models.TransitionEvent]map[models.Role]bool)
	for event, rules := range transitionTable {
		roles := make(map[models.Role]bool)
		for _, rule := range rules {
			for _, role := range rule.Roles {
				roles[role] = true
			}
		}
		allowed[event] = roles
	}
	return &RoleGateway{allowed: allowed}
}

// Allows reports whether role may ever invoke event.
func (g *RoleGateway) Allows(role models.Role, event models.TransitionEvent) bool {
	return g.allowed[event][role]
}

// Authorize rejects with Forbidden before any store access when the role can
// never perform the event.
func (g *RoleGateway) Authorize(requestID primitive.ObjectID, role models.Role, event models.TransitionEvent) error {
	if !g.Allows(role, event) {
		return models.NewForbidden(requestID, role, event)
	}
	return nil
}
