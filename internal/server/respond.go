package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ragbot/internal/domain"
	"ragbot/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// statusFor maps orchestrator errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, service.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsBackendKind(err, domain.BackendTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrBackend):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	if werr := writeJSON(w, status, errorResponse{Error: err.Error()}); werr != nil {
		s.logger.Error("failed to write error response", zap.Error(werr))
	}
}

func (s *Server) writeOK(w http.ResponseWriter, data any) {
	if err := writeJSON(w, http.StatusOK, data); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}
