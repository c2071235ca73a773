// Package access maps roles to the operation categories they may perform.
package access

import (
	"context"
	"fmt"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

type Capability string

const (
	Dashboard   Capability = "dashboard"
	Inventory   Capability = "inventory"
	Assignments Capability = "assignments"
	Reports     Capability = "reports"
	Users       Capability = "users"
	Create      Capability = "create"
	Update      Capability = "update"
	Delete      Capability = "delete"
)

var policy = map[custody.Role][]Capability{
	custody.RoleAdmin:      {Dashboard, Inventory, Assignments, Reports, Users, Create, Update, Delete},
	custody.RoleTechnician: {Dashboard, Inventory, Assignments, Reports, Create, Update},
	custody.RoleAuditor:    {Dashboard, Inventory, Reports},
	custody.RoleViewer:     {Dashboard, Inventory},
}

// Capabilities returns a copy of the capability set granted to role.
// Unknown roles get nothing.
func Capabilities(role custody.Role) []Capability {
	caps := policy[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Allows reports whether role holds every one of caps.
func Allows(role custody.Role, caps ...Capability) bool {
	granted := policy[role]
	for _, want := range caps {
		found := false
		for _, have := range granted {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Check resolves the actor from ctx and verifies it holds every capability.
func Check(ctx context.Context, caps ...Capability) (internal.Actor, error) {
	actor, ok := internal.ActorFromContext(ctx)
	if !ok {
		return internal.Actor{}, internal.ErrAuthRequired()
	}
	if !Allows(actor.Role, caps...) {
		return actor, internal.NewForbiddenError(
			fmt.Sprintf("role %s lacks required capability %v", actor.Role, caps),
			internal.ErrCodeForbidden,
		)
	}
	return actor, nil
}
