// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/finwise/movements-api-go/internal/domain"
)

// MovementFilter is the row scope applied to movement reads.
// The zero value is unscoped (admin view).
type MovementFilter struct {
	UserID string
}

// Unscoped reports whether the filter matches every row.
func (f MovementFilter) Unscoped() bool {
	return f.UserID == ""
}

// MovementStore defines all data operations over movement rows.
// Implemented by the Supabase adapter (or any other persistence layer).
// Single-row operations are assumed atomic; the store performs no
// client-side locking.
type MovementStore interface {
	// ListMovements returns one page of movements matching filter,
	// ordered by date descending. page is 1-based.
	ListMovements(ctx context.Context, filter MovementFilter, page, limit int) ([]domain.Movement, error)
	// ListRecentMovements returns at most max movements matching
	// filter, most recent by date first. max <= 0 means no limit.
	ListRecentMovements(ctx context.Context, filter MovementFilter, max int) ([]domain.Movement, error)
	CountMovements(ctx context.Context, filter MovementFilter) (int64, error)
	GetMovement(ctx context.Context, id string) (*domain.Movement, error)
	CreateMovement(ctx context.Context, m *domain.Movement) (*domain.Movement, error)
	// UpdateMovement applies only the given column changes. A vanished
	// row is reported as domain.ErrNotFound, never as a raw store error.
	UpdateMovement(ctx context.Context, id string, changes map[string]any) (*domain.Movement, error)
	DeleteMovement(ctx context.Context, id string) error
}

// UserStore defines all data operations over user rows.
type UserStore interface {
	// ListUsers returns all users ordered by creation time descending.
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CountUsersByRole(ctx context.Context, role domain.Role) (int64, error)
	UpdateUser(ctx context.Context, id string, changes map[string]any) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoleLookup resolves the authoritative role of a user from storage.
// Used by the authorization policy to defeat stale session role claims.
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (domain.Role, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
