// package server contains the HTTP surface of the playlist mixer: routing,
// middleware, the JSON API handlers and the one-shot CLI OAuth callback.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mixtape/internal/services"
	"mixtape/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers.
// Implementations handle specific endpoints (auth, search, generation).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// errorResponse is the JSON envelope for every API error.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps an error onto a status code and the error envelope. The
// envelope's "error" field is a stable kind; "message" carries detail.
func writeError(w http.ResponseWriter, err error) {
	var rlErr *services.RateLimitError

	switch {
	case errors.Is(err, shared.ErrNotConfigured):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "credentials not configured"})
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rlErr.RetryAfter.Seconds())))
		}
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limited", Message: err.Error()})
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrNoRefreshToken), errors.Is(err, shared.ErrAuthFailed):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated", Message: err.Error()})
	case errors.Is(err, shared.ErrPlaylistNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "playlist not found", Message: err.Error()})
	case errors.Is(err, shared.ErrInsufficientTracks):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "not enough tracks in pool", Message: err.Error()})
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Message: err.Error()})
	case errors.Is(err, shared.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "upstream timeout", Message: err.Error()})
	case errors.Is(err, shared.ErrAPIRequest):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream error", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Message: err.Error()})
	}
}

// decodeJSON parses a request body, mapping malformed input to
// [shared.ErrInvalidInput].
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
