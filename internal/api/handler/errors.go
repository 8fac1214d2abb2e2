// Package handler implements the HTTP endpoints. Each constructor takes the
// narrow service interface it needs and returns an http.HandlerFunc.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/internal/analysis"
	mw "github.com/todaycapital/statementlens/internal/api/middleware"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/internal/auth"
	"github.com/todaycapital/statementlens/internal/store"
)

const maxJSONBody = 10 << 20

// writeError maps service and store errors to status codes and error codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var mie *analysis.MergeInputError
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, ai.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this resource", nil)
	case errors.Is(err, ai.ErrNoStatements):
		response.Error(w, http.StatusNotFound, "NO_STATEMENTS", "No valid statements found", nil)
	case errors.Is(err, ai.ErrNoFiles):
		response.Error(w, http.StatusBadRequest, "NO_FILES", "No files uploaded", nil)
	case errors.Is(err, ai.ErrTooManyFiles), errors.Is(err, ai.ErrFileTooLarge),
		errors.Is(err, ai.ErrUnsupportedFileType):
		response.Error(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil)
	case errors.As(err, &mie):
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_ANALYSIS",
			"Analysis is incomplete", map[string]string{"which": mie.Which, "section": mie.Section})
	case errors.Is(err, ai.ErrReportBusy), errors.Is(err, store.ErrConcurrentUpdate):
		response.Error(w, http.StatusConflict, "REPORT_BUSY",
			"The report is being updated by another request, try again shortly", nil)
	case errors.Is(err, ai.ErrInferenceTimeout):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"AI analysis took too long and was cancelled", nil)
	case errors.Is(err, ai.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	case errors.Is(err, ai.ErrExtraction):
		response.Error(w, http.StatusBadGateway, "EXTRACTION_FAILED",
			"The statements could not be analyzed", nil)
	case errors.Is(err, auth.ErrMissingCredentials):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, auth.ErrEmailTaken):
		response.Error(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := mw.GetUserID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Not authenticated", nil)
	}
	return id, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
