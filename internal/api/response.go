// Package api serves the dashboard page and its JSON API over the current
// snapshot.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ppiankov/gdeltwatch/internal/logging"
)

// Error codes returned in APIResponse.Error
const (
	CodeIndexFetchFailed  = "INDEX_FETCH_FAILED"
	CodeRefreshInProgress = "REFRESH_IN_PROGRESS"
	CodeRefreshFailed     = "REFRESH_FAILED"
	CodeNoSnapshot        = "NO_SNAPSHOT"
	CodeValidation        = "VALIDATION_ERROR"
	CodeBriefingDisabled  = "BRIEFING_DISABLED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeRateLimited       = "RATE_LIMITED"
)

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Status   string    `json:"status"` // "success" or "error"
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata describes when the response and its snapshot were produced
type Metadata struct {
	Timestamp   time.Time  `json:"timestamp"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// APIError is a machine-readable code with a human message
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, data any, refreshedAt *time.Time) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			Timestamp:   time.Now().UTC(),
			RefreshedAt: refreshedAt,
		},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("code", code).Int("status", status).Msg("API error")
	}

	respondJSON(w, status, &APIResponse{
		Status: "error",
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}
