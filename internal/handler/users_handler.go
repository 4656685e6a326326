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
// Users Handlers
// ============================================================

func meHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /me")
		defer span.End()
		u, err := svc.Me(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func listUsersHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /users")
		defer span.End()
		users, err := svc.List(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func updateUserHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /users/{userId}")
		defer span.End()
		var in domain.UpdateUserInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := svc.Update(ctx, PrincipalFromContext(ctx), chi.URLParam(r, "userId"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteUserHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /users/{userId}")
		defer span.End()
		if err := svc.Delete(ctx, PrincipalFromContext(ctx), chi.URLParam(r, "userId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
