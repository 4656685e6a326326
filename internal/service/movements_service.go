// Package service provides the business logic layer (use cases):
// movement CRUD, user administration and report building, all gated
// through the access policy.
package service

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/finwise/movements-api-go/internal/authz"
	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/infra/observability"
	"github.com/finwise/movements-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var movTracer = otel.Tracer("service/movements")

const (
	defaultPageLimit = 10
	maxPageLimit     = 100

	maxConceptLength = 200
	maxAmount        = 999_999_999
)

// MovementService orchestrates movement reads and writes. Every
// operation authenticates the principal first, then resolves row scope
// or per-row permission through the policy.
type MovementService struct {
	store   port.MovementStore
	policy  *authz.Policy
	reports *ReportService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMovementService creates the movement service. reports may be nil
// in tests; it is only used to drop stale report aggregates after a
// write.
func NewMovementService(store port.MovementStore, policy *authz.Policy, reports *ReportService, metrics *observability.Metrics, logger *zap.Logger) *MovementService {
	return &MovementService{store: store, policy: policy, reports: reports, metrics: metrics, logger: logger}
}

// clampPage normalizes user-supplied pagination without erroring:
// page floors at 1, limit falls back to the default when missing or
// non-positive and caps at the maximum.
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// List returns one page of movements visible to the principal: all
// rows for an admin, own rows for a regular user.
func (s *MovementService) List(ctx context.Context, principal *domain.Principal, page, limit int) (*domain.MovementPage, error) {
	ctx, span := movTracer.Start(ctx, "MovementService.List")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	filter, err := s.policy.ListMovementsScope(principal)
	if err != nil {
		return nil, err
	}
	page, limit = clampPage(page, limit)
	span.SetAttributes(attribute.Int("page", page), attribute.Int("limit", limit))

	total, err := s.store.CountMovements(ctx, filter)
	if err != nil {
		s.metrics.IncrStoreError("movements.count")
		return nil, err
	}
	movements, err := s.store.ListMovements(ctx, filter, page, limit)
	if err != nil {
		s.metrics.IncrStoreError("movements.list")
		return nil, err
	}
	if movements == nil {
		movements = []domain.Movement{}
	}

	return &domain.MovementPage{
		Data: movements,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int64(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

// Get returns a single movement. Existence is checked before
// ownership, so a non-owner probing a real id gets forbidden, not
// not-found.
func (s *MovementService) Get(ctx context.Context, principal *domain.Principal, id string) (*domain.Movement, error) {
	ctx, span := movTracer.Start(ctx, "MovementService.Get")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	m, err := s.store.GetMovement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanMutateMovement(ctx, principal, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a new movement owned by the principal. Only admins
// may create movements.
func (s *MovementService) Create(ctx context.Context, principal *domain.Principal, in *domain.CreateMovementInput) (*domain.Movement, error) {
	ctx, span := movTracer.Start(ctx, "MovementService.Create")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	if err := s.policy.CanCreateMovement(principal); err != nil {
		return nil, err
	}

	var issues []domain.FieldIssue
	concept, conceptIssues := validateConcept(in.Concept)
	issues = append(issues, conceptIssues...)
	issues = append(issues, validateAmount(in.Amount)...)
	date, dateIssues := parseMovementDate(in.Date)
	issues = append(issues, dateIssues...)
	if !domain.MovementType(in.Type).Valid() {
		issues = append(issues, domain.FieldIssue{Field: "type", Message: "must be INCOME or EXPENSE"})
	}
	if len(issues) > 0 {
		return nil, &domain.ErrValidation{Issues: issues}
	}

	now := time.Now().UTC()
	m := &domain.Movement{
		ID:        uuid.NewString(),
		Concept:   concept,
		Amount:    in.Amount,
		Date:      date,
		Type:      domain.MovementType(in.Type),
		UserID:    principal.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.store.CreateMovement(ctx, m)
	if err != nil {
		s.metrics.IncrStoreError("movements.create")
		return nil, err
	}
	s.invalidateReports(created.UserID)
	s.logger.Info("movement created",
		zap.String("movement_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("type", string(created.Type)))
	return created, nil
}

// Update applies a partial update. Only the owner or an admin may
// update a movement, and only provided fields are touched.
func (s *MovementService) Update(ctx context.Context, principal *domain.Principal, id string, in *domain.UpdateMovementInput) (*domain.Movement, error) {
	ctx, span := movTracer.Start(ctx, "MovementService.Update")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	current, err := s.store.GetMovement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanMutateMovement(ctx, principal, current); err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, &domain.ErrValidation{Issues: []domain.FieldIssue{
			{Field: "body", Message: "at least one field must be provided"},
		}}
	}

	var issues []domain.FieldIssue
	changes := map[string]any{}
	if in.Concept != nil {
		concept, conceptIssues := validateConcept(*in.Concept)
		issues = append(issues, conceptIssues...)
		changes["concept"] = concept
	}
	if in.Amount != nil {
		issues = append(issues, validateAmount(*in.Amount)...)
		changes["amount"] = *in.Amount
	}
	if in.Date != nil {
		date, dateIssues := parseMovementDate(*in.Date)
		issues = append(issues, dateIssues...)
		changes["date"] = date.UTC().Format(time.RFC3339Nano)
	}
	if in.Type != nil {
		if !domain.MovementType(*in.Type).Valid() {
			issues = append(issues, domain.FieldIssue{Field: "type", Message: "must be INCOME or EXPENSE"})
		}
		changes["type"] = *in.Type
	}
	if len(issues) > 0 {
		return nil, &domain.ErrValidation{Issues: issues}
	}
	changes["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	updated, err := s.store.UpdateMovement(ctx, id, changes)
	if err != nil {
		s.metrics.IncrStoreError("movements.update")
		return nil, err
	}
	s.invalidateReports(updated.UserID)
	return updated, nil
}

// Delete removes a movement. Only the owner or an admin may delete.
func (s *MovementService) Delete(ctx context.Context, principal *domain.Principal, id string) error {
	ctx, span := movTracer.Start(ctx, "MovementService.Delete")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return err
	}
	current, err := s.store.GetMovement(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanMutateMovement(ctx, principal, current); err != nil {
		return err
	}
	if err := s.store.DeleteMovement(ctx, id); err != nil {
		s.metrics.IncrStoreError("movements.delete")
		return err
	}
	s.invalidateReports(current.UserID)
	s.logger.Info("movement deleted",
		zap.String("movement_id", id),
		zap.String("user_id", current.UserID))
	return nil
}

func (s *MovementService) invalidateReports(ownerID string) {
	if s.reports != nil {
		s.reports.Invalidate(ownerID)
	}
}

func validateConcept(raw string) (string, []domain.FieldIssue) {
	concept := strings.TrimSpace(raw)
	var issues []domain.FieldIssue
	if concept == "" {
		issues = append(issues, domain.FieldIssue{Field: "concept", Message: "must not be empty"})
	}
	if utf8.RuneCountInString(concept) > maxConceptLength {
		issues = append(issues, domain.FieldIssue{Field: "concept", Message: "must be at most 200 characters"})
	}
	if strings.ContainsAny(concept, "<>") {
		issues = append(issues, domain.FieldIssue{Field: "concept", Message: "must not contain markup characters"})
	}
	return concept, issues
}

func validateAmount(amount float64) []domain.FieldIssue {
	var issues []domain.FieldIssue
	if !(amount > 0) {
		issues = append(issues, domain.FieldIssue{Field: "amount", Message: "must be greater than zero"})
	}
	if amount > maxAmount {
		issues = append(issues, domain.FieldIssue{Field: "amount", Message: "must be at most 999999999"})
	}
	// Tolerance absorbs float64 representation noise (0.1+0.2 style
	// artifacts) while still rejecting genuine sub-cent precision.
	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		issues = append(issues, domain.FieldIssue{Field: "amount", Message: "must have at most two decimal places"})
	}
	return issues
}

// parseMovementDate accepts a full RFC 3339 timestamp or a bare
// calendar date, which is taken as midnight UTC.
func parseMovementDate(raw string) (time.Time, []domain.FieldIssue) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, []domain.FieldIssue{{Field: "date", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD"}}
}
