package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type summarizeRequest struct {
	Content string `json:"content"`
	// Pointer so an explicit non-positive value can be rejected while an
	// absent field falls back to the model default.
	MaxTokens *int `json:"max_tokens"`
}

// handleSummarize serves POST /summarize as a server-sent event stream: one
// data frame per model chunk, a [DONE] frame on completion, an error frame
// on mid-stream failure.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request", "body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid request", "content is required and must be non-empty")
		return
	}
	maxTokens := 0
	if req.MaxTokens != nil {
		if *req.MaxTokens <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid request", "max_tokens must be positive")
			return
		}
		maxTokens = *req.MaxTokens
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "internal error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	chunks := 0
	err := s.summarizer.StreamSummary(r.Context(), req.Content, maxTokens, func(token string) error {
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", token); werr != nil {
			return werr
		}
		flusher.Flush()
		chunks++
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("Summarize client disconnected",
				zap.String("request_id", RequestID(r.Context())),
				zap.Int("chunks", chunks),
			)
			return
		}
		_, msg := classifyError(err)
		s.logger.Warn("Summarize stream failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int("chunks", chunks),
			zap.Error(err),
		)
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", msg)
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
	s.logger.Debug("Summarize stream completed",
		zap.Int("chunks", chunks),
		zap.Duration("elapsed", time.Since(start)),
	)
}
