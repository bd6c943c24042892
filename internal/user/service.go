// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/taskmanager/internal/auth"
	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(
	ctx context.Context,
	actor *policy.Actor,
	params ListUsersParams,
) ([]User, int, error) {
	if !policy.Authorize(actor, policy.UserList, nil) {
		return nil, 0, fmt.Errorf("list users: %w", core.ErrForbidden)
	}
	return s.repo.List(ctx, params)
}

func (s *Service) Get(ctx context.Context, actor *policy.Actor, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Authorize(actor, policy.UserView, policy.User(u.ID)) {
		return nil, fmt.Errorf("get user: %w", core.ErrForbidden)
	}

	return u, nil
}

func (s *Service) Create(
	ctx context.Context,
	actor *policy.Actor,
	req CreateUserRequest,
) (*User, error) {
	if !policy.Authorize(actor, policy.UserCreate, nil) {
		return nil, fmt.Errorf("create user: %w", core.ErrForbidden)
	}

	role := policy.RoleMember
	if req.Role != "" {
		parsed, err := policy.ParseRole(req.Role)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", core.ErrInvalidInput)
		}
		role = parsed
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Update(
	ctx context.Context,
	actor *policy.Actor,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Authorize(actor, policy.UserUpdate, policy.User(u.ID)) {
		return nil, fmt.Errorf("update user: %w", core.ErrForbidden)
	}

	if req.Role != nil {
		role, parseErr := policy.ParseRole(*req.Role)
		if parseErr != nil {
			return nil, fmt.Errorf("update user: %w", core.ErrInvalidInput)
		}
		if role != u.Role {
			if !policy.Authorize(actor, policy.UserChangeRole, policy.User(u.ID)) {
				return nil, fmt.Errorf("change role: %w", core.ErrForbidden)
			}
			u.Role = role
		}
	}

	if req.Email != nil {
		u.Email = normalizeEmail(*req.Email)
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Delete(ctx context.Context, actor *policy.Actor, id string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !policy.Authorize(actor, policy.UserDelete, policy.User(u.ID)) {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	return s.repo.Delete(ctx, u.ID)
}

// ResolveActor turns an authenticated subject into an actor carrying the
// role currently stored, so role changes apply without reissuing tokens.
func (s *Service) ResolveActor(ctx context.Context, id string) (*policy.Actor, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("resolve actor: %w", core.ErrUnauthorized)
		}
		return nil, err
	}
	return u.Actor(), nil
}

// Lookup is the unchecked read used by background jobs.
func (s *Service) Lookup(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

// CreateAccount registers a self-signup user. Signups are always members.
func (s *Service) CreateAccount(ctx context.Context, acct auth.NewAccount) (*auth.UserInfo, error) {
	u := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(acct.Email),
		PasswordHash: acct.PasswordHash,
		FirstName:    acct.FirstName,
		LastName:     acct.LastName,
		Role:         policy.RoleMember,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return toUserInfo(u), nil
}

func (s *Service) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
