package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/finwise/movements-api-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error  string              `json:"error"`
	Reason string              `json:"reason,omitempty"`
	Issues []domain.FieldIssue `json:"issues,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePagination reads page/limit without validating: out-of-range
// values are passed through and clamped by the service.
func parsePagination(r *http.Request) (page, limit int) {
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			page = p
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	return
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var unauthenticated *domain.ErrUnauthenticated
	var forbidden *domain.ErrForbidden
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var invariant *domain.ErrDomainInvariant
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &unauthenticated):
		logger.Debug("unauthenticated", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("reason", forbidden.Reason))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Reason: forbidden.Reason})
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Issues: validation.Issues})
	case errors.As(err, &invariant):
		logger.Warn("domain invariant", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &external):
		logger.Error("upstream failure", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
