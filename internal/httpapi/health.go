package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// serviceName is pinned in the /health payload; monitors match on it.
const serviceName = "search-api"

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// handleHealth is the liveness probe: static body, no outbound calls.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "healthy", Service: serviceName}); err != nil {
		s.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// handleReady runs the registered in-memory checks and reports 503 until
// every critical one passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
		return
	}

	report := s.health.Check(r.Context())
	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}
