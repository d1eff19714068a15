package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/tablegate/ports"
	"github.com/rs/zerolog"
)

// ErrInvalidUser is returned for malformed user input.
var ErrInvalidUser = errors.New("invalid user")

// CreateUserInput is the payload for creating a user.
type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UserService implements the users CRUD collaborator.
type UserService struct {
	users  ports.UserStore
	hasher ports.Hasher
	ids    ports.IDGenerator
	clock  ports.Clock
	logger zerolog.Logger
}

// NewUserService creates a user service.
func NewUserService(
	users ports.UserStore,
	hasher ports.Hasher,
	ids ports.IDGenerator,
	clock ports.Clock,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		ids:    ids,
		clock:  clock,
		logger: logger.With().Str("service", "users").Logger(),
	}
}

// Create stores a new user with a hashed password.
// Returns ports.ErrDuplicate when the username is taken.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (ports.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return ports.User{}, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if in.Password == "" {
		return ports.User{}, fmt.Errorf("%w: password is required", ErrInvalidUser)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return ports.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	u := ports.User{
		ID:           s.ids.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return ports.User{}, err
	}

	s.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("user created")
	return u, nil
}

// Get returns the user with id, or ports.ErrNotFound.
func (s *UserService) Get(ctx context.Context, id string) (ports.User, error) {
	return s.users.Get(ctx, id)
}

// Update applies in to the user with id and returns the stored result.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (ports.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return ports.User{}, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return ports.User{}, fmt.Errorf("%w: username cannot be empty", ErrInvalidUser)
		}
		u.Username = username
	}
	if in.Password != nil {
		if *in.Password == "" {
			return ports.User{}, fmt.Errorf("%w: password cannot be empty", ErrInvalidUser)
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return ports.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	u.UpdatedAt = s.clock.Now()
	if err := s.users.Update(ctx, u); err != nil {
		return ports.User{}, err
	}
	return u, nil
}

// Delete removes the user with id. Deleting a missing user is not an error.
func (s *UserService) Delete(ctx context.Context, id string) error {
	err := s.users.Delete(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err == nil {
		s.logger.Info().Str("user_id", id).Msg("user deleted")
	}
	return err
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]ports.User, error) {
	return s.users.List(ctx)
}
