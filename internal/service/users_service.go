package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/finwise/movements-api-go/internal/authz"
	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/infra/observability"
	"github.com/finwise/movements-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var userTracer = otel.Tracer("service/users")

const maxNameLength = 100

// UserService handles user administration (admin-only) and the
// principal's own profile.
type UserService struct {
	store   port.UserStore
	policy  *authz.Policy
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewUserService creates the user service.
func NewUserService(store port.UserStore, policy *authz.Policy, metrics *observability.Metrics, logger *zap.Logger) *UserService {
	return &UserService{store: store, policy: policy, metrics: metrics, logger: logger}
}

// Me returns the principal's own profile.
func (s *UserService) Me(ctx context.Context, principal *domain.Principal) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Me")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, principal.ID)
}

// List returns the sanitized projection of every user. Admin only.
func (s *UserService) List(ctx context.Context, principal *domain.Principal) ([]domain.UserProjection, error) {
	ctx, span := userTracer.Start(ctx, "UserService.List")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	if err := s.policy.CanListUsers(principal); err != nil {
		return nil, err
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.metrics.IncrStoreError("users.list")
		return nil, err
	}
	projections := make([]domain.UserProjection, 0, len(users))
	for _, u := range users {
		projections = append(projections, u.Project())
	}
	return projections, nil
}

// Update patches a user's name and/or role. Admin only. Demoting the
// last remaining admin is refused: the system must always keep at
// least one.
func (s *UserService) Update(ctx context.Context, principal *domain.Principal, id string, in *domain.UpdateUserInput) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("target.id", id))

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	if err := s.policy.CanMutateUser(principal); err != nil {
		return nil, err
	}
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, &domain.ErrValidation{Issues: []domain.FieldIssue{
			{Field: "body", Message: "at least one field must be provided"},
		}}
	}

	var issues []domain.FieldIssue
	changes := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			issues = append(issues, domain.FieldIssue{Field: "name", Message: "must not be empty"})
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			issues = append(issues, domain.FieldIssue{Field: "name", Message: "must be at most 100 characters"})
		}
		changes["name"] = name
	}
	if in.Role != nil {
		role := domain.Role(*in.Role)
		if !role.Valid() {
			issues = append(issues, domain.FieldIssue{Field: "role", Message: "must be USER or ADMIN"})
		}
		changes["role"] = *in.Role
	}
	if len(issues) > 0 {
		return nil, &domain.ErrValidation{Issues: issues}
	}

	if in.Role != nil && target.Role == domain.RoleAdmin && domain.Role(*in.Role) == domain.RoleUser {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdateUser(ctx, id, changes)
	if err != nil {
		s.metrics.IncrStoreError("users.update")
		return nil, err
	}
	s.logger.Info("user updated",
		zap.String("target_id", id),
		zap.String("actor_id", principal.ID))
	return updated, nil
}

// Delete removes a user. Admin only. Deleting the last remaining admin
// is refused.
func (s *UserService) Delete(ctx context.Context, principal *domain.Principal, id string) error {
	ctx, span := userTracer.Start(ctx, "UserService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("target.id", id))

	if err := s.policy.Authenticate(principal); err != nil {
		return err
	}
	if err := s.policy.CanDeleteUser(principal); err != nil {
		return err
	}
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleAdmin {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		s.metrics.IncrStoreError("users.delete")
		return err
	}
	s.logger.Info("user deleted",
		zap.String("target_id", id),
		zap.String("actor_id", principal.ID))
	return nil
}

// ensureNotLastAdmin refuses an operation that would leave the system
// with no admin. The count and the following write are not atomic;
// a concurrent demotion can in principle slip through, which is
// accepted for this data shape.
func (s *UserService) ensureNotLastAdmin(ctx context.Context) error {
	admins, err := s.store.CountUsersByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return &domain.ErrDomainInvariant{Message: "cannot remove the last remaining admin"}
	}
	return nil
}
