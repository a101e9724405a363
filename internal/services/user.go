package services

import (
	"context"
	"errors"
	"strings"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/store"
	"github.com/nyxus-portfolio/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserCreate is the input for a new account. IsActive defaults to true.
type UserCreate struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsActive *bool  `json:"is_active"`
	IsAdmin  bool   `json:"is_superuser"`
}

// UserUpdate changes only the fields that are set.
type UserUpdate struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_superuser"`
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher auth.PasswordHasher
}

func NewUserService(repo UserRepository, hasher auth.PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, offset, clampLimit(limit))
}

func (s *UserService) Create(ctx context.Context, in UserCreate) (types.User, error) {
	email := strings.TrimSpace(in.Email)
	if !validEmail(email) {
		return types.User{}, invalid("email", "must be a valid email address")
	}
	if in.Password == "" {
		return types.User{}, invalid("password", "must not be empty")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.repo.Create(ctx, types.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
		IsAdmin:      in.IsAdmin,
	})
}

func (s *UserService) Update(ctx context.Context, id int, in UserUpdate) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if !validEmail(email) {
			return types.User{}, invalid("email", "must be a valid email address")
		}
		user.Email = email
	}
	if in.Password != nil {
		if *in.Password == "" {
			return types.User{}, invalid("password", "must not be empty")
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.IsAdmin != nil {
		user.IsAdmin = *in.IsAdmin
	}
	return s.repo.Update(ctx, user)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// EnsureAdmin creates an active admin account unless one with email already
// exists. Existing accounts are left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	active := true
	_, err = s.Create(ctx, UserCreate{Email: email, Password: password, IsActive: &active, IsAdmin: true})
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
