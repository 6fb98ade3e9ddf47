// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/models"
	syncpkg "github.com/stemmahq/stemma/internal/sync"
	"github.com/stemmahq/stemma/internal/validation"
)

// respondJSON writes the response envelope with the given status code.
// Responses carry per-user encrypted payloads, so no caching headers are
// set here; APISecurityHeaders marks everything no-store.
func respondJSON(w http.ResponseWriter, statusCode int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	respondJSON(w, statusCode, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// respondError writes an error envelope. message is what the client sees;
// err is the internal cause for the log line and may be nil.
func respondError(w http.ResponseWriter, statusCode int, code, message string, err error) {
	event := logging.Warn()
	if statusCode >= http.StatusInternalServerError {
		event = logging.Error()
	}
	event.Err(err).
		Int("status", statusCode).
		Str("code", code).
		Msg(message)

	respondJSON(w, statusCode, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// respondDomainError maps storage and reconciler failures onto the error
// vocabulary shared by every tree-scoped endpoint: an unknown or foreign
// tree id is a generic 404, an unknown entity target a kind-specific 404,
// person references outside the tree a 422, anything else a logged 500.
func respondDomainError(w http.ResponseWriter, err error) {
	var nf *syncpkg.NotFoundError
	var ve *syncpkg.ValidationError

	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, "NOT_FOUND", nf.Error(), nil)
	case errors.As(err, &ve):
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", ve.Error(), nil)
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Tree not found", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// decodeJSON parses the request body into dst and validates its tags. On
// failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return false
	}

	if ve := validation.ValidateStruct(dst); ve != nil {
		respondValidationError(w, ve)
		return false
	}
	return true
}

// respondValidationError writes a 400 carrying the validator's field
// details.
func respondValidationError(w http.ResponseWriter, ve *validation.RequestValidationError) {
	apiErr := ve.ToAPIError()

	logging.Warn().
		Str("code", apiErr.Code).
		Msg(apiErr.Message)

	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// respondNoContent acknowledges a delete with an empty 204.
func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses the named path segment as a UUID. On failure it writes a
// 400 and returns false.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
