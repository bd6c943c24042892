// AngelaMos | 2026
// role.go

package policy

import "fmt"

type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

var roleOrder = []Role{RoleMember, RoleManager, RoleAdmin}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// Rank orders roles member < manager < admin. Unknown roles rank -1.
func (r Role) Rank() int {
	for i, known := range roleOrder {
		if r == known {
			return i
		}
	}
	return -1
}

func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

// Ordinal is the storage encoding of a role.
func (r Role) Ordinal() int {
	return r.Rank()
}

func RoleFromOrdinal(n int) (Role, error) {
	if n < 0 || n >= len(roleOrder) {
		return "", fmt.Errorf("unknown role ordinal %d", n)
	}
	return roleOrder[n], nil
}

func (r Role) String() string {
	return string(r)
}

// Actor is the authenticated user an operation is performed on behalf of.
type Actor struct {
	ID   string
	Role Role
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
