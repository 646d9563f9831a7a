package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/records"
	"github.com/dmitrijs2005/fleetcheck/internal/server/services"
)

// statusFor maps service errors onto a status code and the message sent to
// the client. The second result is false for errors that must not leak.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, common.ErrTokenExpired.Error(), true
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, common.ErrRefreshTokenExpired.Error(), true
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized", true
	case errors.Is(err, services.ErrUnknownCollection),
		errors.Is(err, services.ErrNoPhoto),
		errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, err.Error(), true
	case errors.Is(err, common.ErrAlreadyExists),
		errors.Is(err, records.ErrStaleVersion),
		errors.Is(err, services.ErrExecutionClosed):
		return http.StatusConflict, err.Error(), true
	case errors.Is(err, common.ErrInvalidPayload):
		return http.StatusBadRequest, err.Error(), true
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error(), false
	}
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code, msg, known := statusFor(err)
	if !known {
		s.logger.Error(ctx, "request failed", "error", err)
	}
	writeError(w, code, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, api.ErrorResponse{Error: msg})
}
