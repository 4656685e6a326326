package handler

import (
	"net/http"

	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/infra/observability"
	"github.com/finwise/movements-api-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Reports Handlers
// ============================================================

func getReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /reports")
		defer span.End()
		report, err := svc.Summary(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func exportCSVHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /reports/csv")
		defer span.End()
		csv, err := svc.ExportCSV(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="movements-report.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(csv))
	}
}

// opsStatsHandler exposes counter snapshots for dashboards. Session
// role is enough here; the endpoint reveals no row data.
func opsStatsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /ops/stats")
		defer span.End()
		principal := PrincipalFromContext(r.Context())
		if principal == nil || principal.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		writeJSON(w, http.StatusOK, metrics.GetStatsSnapshot())
	}
}
