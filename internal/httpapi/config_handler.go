package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type configResponse struct {
	APIURL string `json:"api_url"`
}

// handleConfig tells clients which base URL to talk to.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(configResponse{APIURL: s.cfg.APIURL}); err != nil {
		s.logger.Error("Failed to encode config response", zap.Error(err))
	}
}
