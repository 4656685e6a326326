package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the API.
// Handlers map these to HTTP status codes with errors.As; services never
// leak raw persistence errors past this taxonomy.

// ErrUnauthenticated indicates no principal could be resolved for the
// request. Always checked before any other failure.
type ErrUnauthenticated struct {
	Message string
}

func (e *ErrUnauthenticated) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authentication required"
}

// ErrForbidden indicates the principal lacks permission. Reason is a
// machine-readable code ("not_owner", "admin_only") so callers can
// distinguish ownership failures from role failures.
type ErrForbidden struct {
	Reason string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// ErrNotFound indicates a resource id does not exist. Existence is
// checked before ownership on the by-id paths.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// FieldIssue is one per-field validation failure.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation indicates a payload failed validation. It carries the
// full set of field issues so the caller gets everything in one round
// trip.
type ErrValidation struct {
	Issues []FieldIssue
}

func (e *ErrValidation) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", i.Field, i.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrDomainInvariant indicates an operation would break a cross-row
// invariant, e.g. deleting the last remaining admin.
type ErrDomainInvariant struct {
	Message string
}

func (e *ErrDomainInvariant) Error() string {
	return e.Message
}

// ErrExternalService indicates a persistence/collaborator failure not
// covered by the taxonomy above. Mapped to a generic internal error at
// the HTTP boundary.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
