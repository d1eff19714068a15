// Package memory provides in-memory implementations of storage ports for
// ephemeral runs and tests. Nothing survives a process restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/tablegate/ports"
)

// UserStore is an in-memory implementation of ports.UserStore.
type UserStore struct {
	mu         sync.RWMutex
	users      map[string]ports.User // by ID
	byUsername map[string]string     // username -> ID
	order      []string              // IDs in creation order
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[string]ports.User),
		byUsername: make(map[string]string),
	}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return ports.User{}, ports.ErrNotFound
	}
	return u, nil
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u ports.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.Username]; exists {
		return ports.ErrDuplicate
	}
	if _, exists := s.users[u.ID]; exists {
		return ports.ErrDuplicate
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	s.order = append(s.order, u.ID)
	return nil
}

// Update modifies an existing user.
func (s *UserStore) Update(ctx context.Context, u ports.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[u.ID]
	if !ok {
		return ports.ErrNotFound
	}

	if old.Username != u.Username {
		if _, taken := s.byUsername[u.Username]; taken {
			return ports.ErrDuplicate
		}
		delete(s.byUsername, old.Username)
		s.byUsername[u.Username] = u.ID
	}

	u.CreatedAt = old.CreatedAt
	s.users[u.ID] = u
	return nil
}

// List returns all users, oldest first.
func (s *UserStore) List(ctx context.Context) ([]ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]ports.User, 0, len(s.users))
	for _, id := range s.order {
		if u, ok := s.users[id]; ok {
			all = append(all, u)
		}
	}
	return all, nil
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ports.ErrNotFound
	}

	delete(s.byUsername, u.Username)
	delete(s.users, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
