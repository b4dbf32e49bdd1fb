package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/cache"
	"github.com/wikivec/wikivec/internal/metrics"
	"github.com/wikivec/wikivec/internal/models"
)

type searchResponse struct {
	Results   []models.SearchMatch `json:"results"`
	LatencyMS float64              `json:"latency_ms"`
	CacheHit  bool                 `json:"cache_hit"`
}

// handleSearch serves GET /search?q=...&k=...: validate, consult the result
// cache, fall through to the vector index, cache and respond.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid request", "q is required and must be non-empty")
		return
	}

	k := s.cfg.DefaultTopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request", "k must be an integer")
			return
		}
		if parsed < 1 || parsed > s.cfg.MaxTopK {
			s.writeError(w, http.StatusBadRequest, "invalid request",
				"k must be between 1 and "+strconv.Itoa(s.cfg.MaxTopK))
			return
		}
		k = parsed
	}

	key := cache.MakeKey(q, k)
	if s.results != nil {
		if matches, ok := s.results.Get(key); ok {
			s.respondSearch(w, r, matches, start, key, k, true)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	matches, err := s.searcher.Query(ctx, q, k)
	if err != nil {
		status, msg := classifyError(err)
		metrics.RecordSearchMetrics("error", false, msFloat(time.Since(start)))
		s.logger.Warn("Search failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int("status", status),
			zap.Error(err),
		)
		s.writeError(w, status, msg, err.Error())
		return
	}
	if matches == nil {
		matches = []models.SearchMatch{}
	}

	if s.results != nil {
		s.results.Put(key, matches)
	}
	s.respondSearch(w, r, matches, start, key, k, false)
}

func (s *Server) respondSearch(w http.ResponseWriter, r *http.Request, matches []models.SearchMatch, start time.Time, key uint64, k int, cacheHit bool) {
	latencyMS := msFloat(time.Since(start))
	metrics.RecordSearchMetrics("ok", cacheHit, latencyMS)
	s.logger.Info("Search completed",
		zap.String("request_id", RequestID(r.Context())),
		zap.Uint64("cache_key", key),
		zap.Int("k", k),
		zap.Float64("latency_ms", latencyMS),
		zap.Bool("cache_hit", cacheHit),
		zap.Int("status", http.StatusOK),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(searchResponse{
		Results:   matches,
		LatencyMS: latencyMS,
		CacheHit:  cacheHit,
	}); err != nil {
		s.logger.Error("Failed to encode search response", zap.Error(err))
	}
}

func msFloat(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
