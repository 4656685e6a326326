// Package authz holds the role-based access control policy: pure
// decision logic over the principal, with a single storage dependency
// for authoritative role lookups.
package authz

import (
	"context"

	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("authz")

// Policy decides, per request, whether an operation is permitted and
// what row scope applies. It holds no mutable state and is safe for
// concurrent use.
type Policy struct {
	roles  port.RoleLookup
	logger *zap.Logger
}

// NewPolicy creates the access policy.
func NewPolicy(roles port.RoleLookup, logger *zap.Logger) *Policy {
	return &Policy{roles: roles, logger: logger}
}

// Authenticate fails when no principal was resolved for the request.
// Every operation checks this before anything else.
func (p *Policy) Authenticate(principal *domain.Principal) error {
	if principal == nil || principal.ID == "" {
		return &domain.ErrUnauthenticated{}
	}
	return nil
}

// ListMovementsScope returns the row filter the principal may list
// under: admins see everything, users see only their own rows.
func (p *Policy) ListMovementsScope(principal *domain.Principal) (port.MovementFilter, error) {
	if err := p.Authenticate(principal); err != nil {
		return port.MovementFilter{}, err
	}
	if principal.Role == domain.RoleAdmin {
		return port.MovementFilter{}, nil
	}
	return port.MovementFilter{UserID: principal.ID}, nil
}

// CanCreateMovement permits creation for admins only. The created
// movement is still attributed to the creating principal.
func (p *Policy) CanCreateMovement(principal *domain.Principal) error {
	if err := p.Authenticate(principal); err != nil {
		return err
	}
	if principal.Role != domain.RoleAdmin {
		return &domain.ErrForbidden{Reason: "admin_only"}
	}
	return nil
}

// CanMutateMovement permits update/delete for admins and for the owner.
// The role is re-resolved from storage at decision time so a stale
// session claim cannot grant admin rights; if the lookup fails, the
// session-carried role is used instead.
func (p *Policy) CanMutateMovement(ctx context.Context, principal *domain.Principal, m *domain.Movement) error {
	if err := p.Authenticate(principal); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "Policy.CanMutateMovement")
	defer span.End()
	span.SetAttributes(
		attribute.String("principal.id", principal.ID),
		attribute.String("movement.id", m.ID),
	)

	role := p.effectiveRole(ctx, principal)
	if role == domain.RoleAdmin {
		return nil
	}
	if m.UserID == principal.ID {
		return nil
	}
	return &domain.ErrForbidden{Reason: "not_owner"}
}

// CanListUsers permits user listing for admins only.
func (p *Policy) CanListUsers(principal *domain.Principal) error {
	return p.requireAdmin(principal)
}

// CanMutateUser permits user updates for admins only.
func (p *Policy) CanMutateUser(principal *domain.Principal) error {
	return p.requireAdmin(principal)
}

// CanDeleteUser permits user deletion for admins only.
func (p *Policy) CanDeleteUser(principal *domain.Principal) error {
	return p.requireAdmin(principal)
}

func (p *Policy) requireAdmin(principal *domain.Principal) error {
	if err := p.Authenticate(principal); err != nil {
		return err
	}
	if principal.Role != domain.RoleAdmin {
		return &domain.ErrForbidden{Reason: "admin_only"}
	}
	return nil
}

// effectiveRole fetches the current role from storage, falling back to
// the session role when the lookup fails.
func (p *Policy) effectiveRole(ctx context.Context, principal *domain.Principal) domain.Role {
	role, err := p.roles.GetUserRole(ctx, principal.ID)
	if err != nil {
		p.logger.Warn("authz: role lookup failed, falling back to session role",
			zap.String("principal_id", principal.ID),
			zap.String("session_role", string(principal.Role)),
			zap.Error(err),
		)
		return principal.Role
	}
	return role
}
