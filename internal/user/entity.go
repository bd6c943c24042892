// AngelaMos | 2026
// entity.go

package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/policy"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         policy.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) Actor() *policy.Actor {
	return &policy.Actor{ID: u.ID, Role: u.Role}
}

// userRow is the storage shape. Roles are persisted as ordinals.
type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Role         int       `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *userRow) toUser() (*User, error) {
	role, err := policy.RoleFromOrdinal(r.Role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", r.ID, err)
	}

	return &User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
