// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/tablegate/domain/entity"
)

// Store error classes shared by every backend. Adapters wrap driver errors
// with these so callers can branch with errors.Is.
var (
	// ErrStore marks introspection or DDL failures.
	ErrStore = errors.New("store error")

	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Schema Port
// -----------------------------------------------------------------------------

// SchemaStore introspects and extends the relational schema.
// Implementations hold only a connection handle.
type SchemaStore interface {
	// ListEntityNames returns user-defined table names.
	// Order is backend-defined.
	ListEntityNames(ctx context.Context) ([]string, error)

	// ApplyDefinition creates the table for def. The returned statement
	// text is set on success and on failure.
	ApplyDefinition(ctx context.Context, def entity.Definition) (string, error)
}

// -----------------------------------------------------------------------------
// Users Port
// -----------------------------------------------------------------------------

// User is a row of the users table.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (User, error)

	// Create stores a new user. Returns ErrDuplicate on username conflict.
	Create(ctx context.Context, u User) error

	// Update modifies an existing user. Returns ErrNotFound if absent.
	Update(ctx context.Context, u User) error

	// Delete removes a user. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns all users, oldest first.
	List(ctx context.Context) ([]User, error)
}
