package domain

import "time"

// MovementType distinguishes income from expense entries.
// The wire values are case-sensitive.
type MovementType string

const (
	MovementIncome  MovementType = "INCOME"
	MovementExpense MovementType = "EXPENSE"
)

// Valid reports whether t is one of the two accepted movement types.
func (t MovementType) Valid() bool {
	return t == MovementIncome || t == MovementExpense
}

// Movement is a single income or expense entry, owned exclusively by the
// user referenced by UserID.
type Movement struct {
	ID        string       `json:"id"`
	Concept   string       `json:"concept"`
	Amount    float64      `json:"amount"`
	Date      time.Time    `json:"date"`
	Type      MovementType `json:"type"`
	UserID    string       `json:"userId"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// MovementPage is the paginated listing envelope.
type MovementPage struct {
	Data       []Movement `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CreateMovementInput carries the payload for creating a movement.
// The owner is never taken from the payload; it is always the creating
// principal.
type CreateMovementInput struct {
	Concept string  `json:"concept"`
	Amount  float64 `json:"amount"`
	Date    string  `json:"date"`
	Type    string  `json:"type"`
}

// UpdateMovementInput carries a partial (PATCH) movement update.
// Nil fields are "not provided".
type UpdateMovementInput struct {
	Concept *string  `json:"concept,omitempty"`
	Amount  *float64 `json:"amount,omitempty"`
	Date    *string  `json:"date,omitempty"`
	Type    *string  `json:"type,omitempty"`
}

// Empty reports whether the patch carries no fields at all.
func (in *UpdateMovementInput) Empty() bool {
	return in.Concept == nil && in.Amount == nil && in.Date == nil && in.Type == nil
}
