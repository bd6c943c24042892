// AngelaMos | 2026
// scope.go

package policy

// Scope narrows a task collection to what an actor may see. Repositories
// translate it into a WHERE clause before filtering or paging.
type Scope struct {
	All bool
	// UserID, when set, limits rows to those the user created or is
	// assigned. It is ignored when All is true.
	UserID string
}

// None matches no rows.
func (s Scope) None() bool {
	return !s.All && s.UserID == ""
}

func (s Scope) Includes(creatorID string, assigneeID *string) bool {
	if s.All {
		return true
	}
	if s.UserID == "" {
		return false
	}
	return creatorID == s.UserID || (assigneeID != nil && *assigneeID == s.UserID)
}

func VisibleScope(actor *Actor) Scope {
	if actor == nil || actor.ID == "" {
		return Scope{}
	}

	switch actor.Role {
	case RoleAdmin, RoleManager:
		return Scope{All: true}
	case RoleMember:
		return Scope{UserID: actor.ID}
	default:
		return Scope{}
	}
}
