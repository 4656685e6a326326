package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/finwise/movements-api-go/internal/infra/observability"
	"github.com/finwise/movements-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthPinger reports whether the persistence backend answers.
type HealthPinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	movSvc *service.MovementService,
	userSvc *service.UserService,
	reportSvc *service.ReportService,
	metrics *observability.Metrics,
	pinger HealthPinger,
	jwtSecret []byte,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(metricsMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(pinger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 (authenticated) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, logger))

		r.Get("/me", meHandler(userSvc, logger))

		r.Get("/movements", listMovementsHandler(movSvc, logger))
		r.Post("/movements", createMovementHandler(movSvc, logger))
		r.Get("/movements/{movementId}", getMovementHandler(movSvc, logger))
		r.Patch("/movements/{movementId}", updateMovementHandler(movSvc, logger))
		r.Delete("/movements/{movementId}", deleteMovementHandler(movSvc, logger))

		r.Get("/users", listUsersHandler(userSvc, logger))
		r.Patch("/users/{userId}", updateUserHandler(userSvc, logger))
		r.Delete("/users/{userId}", deleteUserHandler(userSvc, logger))

		r.Get("/reports", getReportHandler(reportSvc, logger))
		r.Get("/reports/csv", exportCSVHandler(reportSvc, logger))

		r.Get("/ops/stats", opsStatsHandler(metrics, logger))
	})

	return r
}

// metricsMiddleware records per-route latency and counts denied
// requests. The route pattern is only known after routing, so the
// labels are read post-serve.
func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
			switch ww.Status() {
			case http.StatusUnauthorized:
				metrics.IncrAuthzDenial("unauthenticated")
			case http.StatusForbidden:
				metrics.IncrAuthzDenial("forbidden")
			}
		})
	}
}

func healthzHandler(pinger HealthPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		var latency int64
		if pinger != nil {
			start := time.Now()
			if err := pinger.Ping(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			latency = time.Since(start).Milliseconds()
		}
		writeJSON(w, code, map[string]any{
			"status":     status,
			"latency_ms": latency,
			"checked_at": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
