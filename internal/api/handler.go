// Package api provides HTTP handlers for the coaching API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/voice-coach/internal/config"
	"github.com/ashureev/voice-coach/internal/store"
	"github.com/ashureev/voice-coach/internal/turn"
)

// Error codes returned alongside error messages so clients can react without
// parsing text.
const (
	CodeValidation          = "VALIDATION"
	CodeNoSpeech            = "NO_SPEECH"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionBusy         = "SESSION_BUSY"
	CodeRateLimited         = "RATE_LIMITED"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamFailure     = "UPSTREAM_FAILURE"
	CodeTimeout             = "TIMEOUT"
	CodeInternal            = "INTERNAL"
)

// Handler provides common handler dependencies.
type Handler struct {
	repo   store.Repository
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, cfg: cfg, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorWithCode writes a JSON error response carrying a machine-readable code.
func ErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, map[string]string{"error": message, "code": code})
}

// classify maps domain errors to an HTTP status, code and user-facing message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, turn.ErrNoSpeech):
		return http.StatusBadRequest, CodeNoSpeech, turn.NoSpeechMessage
	case errors.Is(err, turn.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, turn.ErrNotFound):
		return http.StatusNotFound, CodeSessionNotFound, "Session not found"
	case errors.Is(err, turn.ErrBusy):
		return http.StatusConflict, CodeSessionBusy, "A turn is already in progress for this session"
	case errors.Is(err, turn.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, CodeUpstreamUnavailable, "Speech services are not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout, "The turn took too long. Please try again."
	case errors.Is(err, turn.ErrUpstreamFailure):
		return http.StatusBadGateway, CodeUpstreamFailure, "Failed to process turn. Please try again."
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

// writeError logs err and writes its classified response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, msg := classify(err)
	attrs := []any{"op", op, "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", attrs...)
	} else {
		h.logger.WarnContext(r.Context(), "Request rejected", attrs...)
	}
	ErrorWithCode(w, status, code, msg)
}
