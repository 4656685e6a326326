package service

import (
	"context"
	"errors"
	"sort"

	"github.com/finwise/movements-api-go/internal/authz"
	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/export"
	"github.com/finwise/movements-api-go/internal/infra/observability"
	"github.com/finwise/movements-api-go/internal/infra/resilience"
	"github.com/finwise/movements-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reportTracer = otel.Tracer("service/reports")

// csvExportLimit caps a single export. Larger datasets are truncated
// to the most recent rows rather than streamed.
const csvExportLimit = 10000

const reportCacheKeyAll = "report:all"

// ReportService builds on-demand aggregates and CSV exports over the
// movements visible to the principal. Aggregates are cached per scope;
// exports are always computed fresh but capped by a bulkhead.
type ReportService struct {
	movements port.MovementStore
	users     port.UserStore
	policy    *authz.Policy
	cache     port.Cache[domain.Report]
	bulkhead  *resilience.Bulkhead
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewReportService creates the report service.
func NewReportService(movements port.MovementStore, users port.UserStore, policy *authz.Policy, cache port.Cache[domain.Report], bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *ReportService {
	return &ReportService{
		movements: movements,
		users:     users,
		policy:    policy,
		cache:     cache,
		bulkhead:  bulkhead,
		metrics:   metrics,
		logger:    logger,
	}
}

func reportCacheKey(filter port.MovementFilter) string {
	if filter.Unscoped() {
		return reportCacheKeyAll
	}
	return "report:" + filter.UserID
}

// Invalidate drops the cached aggregates touched by a write to the
// given owner's movements: the owner's own report and the unscoped
// admin report.
func (s *ReportService) Invalidate(ownerID string) {
	s.cache.Delete(reportCacheKeyAll)
	if ownerID != "" {
		s.cache.Delete("report:" + ownerID)
	}
}

// Summary returns income/expense totals, balance and the per-month
// breakdown over the movements visible to the principal.
func (s *ReportService) Summary(ctx context.Context, principal *domain.Principal) (*domain.Report, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Summary")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return nil, err
	}
	filter, err := s.policy.ListMovementsScope(principal)
	if err != nil {
		return nil, err
	}

	key := reportCacheKey(filter)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("report")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("report")

	movements, err := s.movements.ListRecentMovements(ctx, filter, 0)
	if err != nil {
		s.metrics.IncrStoreError("reports.summary")
		return nil, err
	}

	report := buildReport(movements)
	s.cache.Set(key, *report)
	return report, nil
}

// ExportCSV renders the movements visible to the principal as an
// injection-safe CSV document. Movements and their owners are fetched
// concurrently; concurrent exports are bounded by the bulkhead.
func (s *ReportService) ExportCSV(ctx context.Context, principal *domain.Principal) (string, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.ExportCSV")
	defer span.End()

	if err := s.policy.Authenticate(principal); err != nil {
		return "", err
	}
	filter, err := s.policy.ListMovementsScope(principal)
	if err != nil {
		return "", err
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return "", err
	}
	defer s.bulkhead.Release()

	var (
		movements []domain.Movement
		owners    map[string]domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		movements, err = s.movements.ListRecentMovements(gctx, filter, csvExportLimit)
		return err
	})
	g.Go(func() error {
		var err error
		owners, err = s.fetchOwners(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncrStoreError("reports.export")
		return "", err
	}

	records := make([]export.Record, 0, len(movements))
	for _, m := range movements {
		rec := export.Record{Movement: m}
		if u, ok := owners[m.UserID]; ok {
			owner := u
			rec.Owner = &owner
		}
		records = append(records, rec)
	}

	s.metrics.IncrCSVExport()
	s.logger.Info("csv export",
		zap.String("user_id", principal.ID),
		zap.Int("rows", len(records)))
	return export.MovementsCSV(records), nil
}

// fetchOwners loads the users needed to label export rows: everyone
// for the unscoped admin view, just the principal otherwise. A missing
// owner is not an error; the row falls back to a placeholder name.
func (s *ReportService) fetchOwners(ctx context.Context, filter port.MovementFilter) (map[string]domain.User, error) {
	if filter.Unscoped() {
		users, err := s.users.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		owners := make(map[string]domain.User, len(users))
		for _, u := range users {
			owners[u.ID] = u
		}
		return owners, nil
	}
	u, err := s.users.GetUser(ctx, filter.UserID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return map[string]domain.User{}, nil
		}
		return nil, err
	}
	return map[string]domain.User{u.ID: *u}, nil
}

func buildReport(movements []domain.Movement) *domain.Report {
	report := &domain.Report{Monthly: []domain.MonthlyTotal{}}
	byMonth := map[string]*domain.MonthlyTotal{}
	for _, m := range movements {
		month := m.Date.Format("2006-01")
		mt, ok := byMonth[month]
		if !ok {
			mt = &domain.MonthlyTotal{Month: month}
			byMonth[month] = mt
		}
		switch m.Type {
		case domain.MovementIncome:
			report.TotalIncome += m.Amount
			mt.Income += m.Amount
		case domain.MovementExpense:
			report.TotalExpense += m.Amount
			mt.Expense += m.Amount
		}
	}
	report.Balance = report.TotalIncome - report.TotalExpense

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		report.Monthly = append(report.Monthly, *byMonth[month])
	}
	return report
}
