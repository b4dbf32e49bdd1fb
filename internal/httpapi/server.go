// Package httpapi serves the query surface: /search, /summarize, /health,
// /health/ready and /config.
package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/cache"
	"github.com/wikivec/wikivec/internal/config"
	"github.com/wikivec/wikivec/internal/health"
	"github.com/wikivec/wikivec/internal/models"
)

// Searcher answers similarity queries. Implemented by *vectordb.Client.
type Searcher interface {
	Query(ctx context.Context, text string, topK int) ([]models.SearchMatch, error)
}

// Summarizer streams summary tokens. Implemented by *genai.Client.
type Summarizer interface {
	StreamSummary(ctx context.Context, text string, maxTokens int, emit func(token string) error) error
}

// Server holds the handlers' shared dependencies.
type Server struct {
	cfg        *config.Config
	searcher   Searcher
	summarizer Summarizer
	results    *cache.ResultCache
	health     *health.Manager
	logger     *zap.Logger
}

// NewServer wires the query service handlers. results and healthMgr may be
// nil; the corresponding features degrade to cache-off and always-ready.
func NewServer(cfg *config.Config, searcher Searcher, summarizer Summarizer, results *cache.ResultCache, healthMgr *health.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		searcher:   searcher,
		summarizer: summarizer,
		results:    results,
		health:     healthMgr,
		logger:     logger,
	}
}

// Routes returns the fully wired handler: method-scoped routes behind
// recovery, request-id, logging and tracing middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("GET /config", s.handleConfig)

	var h http.Handler = mux
	h = s.tracingMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.requestIDMiddleware(h)
	h = s.recoveryMiddleware(h)
	return h
}
