package domain

import "time"

// Role is the access level of a user account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the two known roles.
// Role values are case-sensitive.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is the authenticated caller: the user id plus the role the
// session token carried. The session role may be stale; authorization
// decisions that matter re-resolve the role from storage.
type Principal struct {
	ID   string
	Role Role
}

// User is a registered account. Name, Phone and Image are nullable.
type User struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Role      Role      `json:"role"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserProjection is the sanitized shape returned by user listings.
// It must never grow credential or secret fields.
type UserProjection struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
	Role  Role    `json:"role"`
}

// Project reduces a user to its listing projection.
func (u User) Project() UserProjection {
	return UserProjection{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
		Role:  u.Role,
	}
}

// UpdateUserInput carries a partial (PATCH) user update.
type UpdateUserInput struct {
	Name *string `json:"name,omitempty"`
	Role *string `json:"role,omitempty"`
}

// Empty reports whether the patch carries no fields at all.
func (in *UpdateUserInput) Empty() bool {
	return in.Name == nil && in.Role == nil
}
