package handler

import (
	"encoding/json"
	"net/http"

	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Movements Handlers
// ============================================================

func listMovementsHandler(svc *service.MovementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /movements")
		defer span.End()
		page, limit := parsePagination(r)
		result, err := svc.List(ctx, PrincipalFromContext(ctx), page, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func getMovementHandler(svc *service.MovementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /movements/{movementId}")
		defer span.End()
		m, err := svc.Get(ctx, PrincipalFromContext(ctx), chi.URLParam(r, "movementId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func createMovementHandler(svc *service.MovementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /movements")
		defer span.End()
		var in domain.CreateMovementInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := svc.Create(ctx, PrincipalFromContext(ctx), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateMovementHandler(svc *service.MovementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /movements/{movementId}")
		defer span.End()
		var in domain.UpdateMovementInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := svc.Update(ctx, PrincipalFromContext(ctx), chi.URLParam(r, "movementId"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteMovementHandler(svc *service.MovementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /movements/{movementId}")
		defer span.End()
		if err := svc.Delete(ctx, PrincipalFromContext(ctx), chi.URLParam(r, "movementId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
