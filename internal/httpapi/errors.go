package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/circuitbreaker"
	"github.com/wikivec/wikivec/internal/embeddings"
	"github.com/wikivec/wikivec/internal/genai"
	"github.com/wikivec/wikivec/internal/vectordb"
)

// errorEnvelope is the body of every non-streaming error response.
type errorEnvelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: msg, Detail: detail}); err != nil {
		s.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// classifyError maps downstream failures onto the response taxonomy:
// deadline 504, dependency 502, anything else 500.
func classifyError(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "request timed out"
	}

	var embedErr *embeddings.EmbeddingError
	if errors.As(err, &embedErr) {
		return http.StatusBadGateway, "embedding model unavailable"
	}
	var queryErr *vectordb.QueryError
	if errors.As(err, &queryErr) {
		return http.StatusBadGateway, "vector index unavailable"
	}
	var genErr *genai.GenerateError
	if errors.As(err, &genErr) {
		return http.StatusBadGateway, "generative model unavailable"
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return http.StatusBadGateway, "dependency unavailable"
	}

	return http.StatusInternalServerError, "internal error"
}
