// Package embeddings calls the managed embedding model and caches the
// resulting vectors. The offline ingestion path batches chunk texts and
// retries transient failures; the online query path embeds one text and
// fails fast.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/metrics"
	"github.com/wikivec/wikivec/internal/models"
	"github.com/wikivec/wikivec/internal/tracing"
)

// Doer executes HTTP requests. Satisfied by *http.Client and by
// *circuitbreaker.HTTPWrapper.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pacer throttles outbound embedding calls during bulk ingestion. The
// online service runs without one.
type Pacer interface {
	Wait(ctx context.Context, texts []string) error
}

// Service generates embeddings through the model's predict endpoint.
type Service struct {
	cfg    Config
	http   Doer
	cache  *Cache
	pacer  Pacer
	logger *zap.Logger
}

// New builds the embedding service. httpClient should carry auth transport;
// cache and pacer may be nil.
func New(cfg Config, httpClient Doer, cache *Cache, pacer Pacer, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, http: httpClient, cache: cache, pacer: pacer, logger: logger}
}

// Config returns the active configuration.
func (s *Service) Config() Config { return s.cfg }

type predictInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type,omitempty"`
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// EmbedChunks embeds every chunk and returns one Vector per input, in input
// order. The call fails atomically: any batch that exhausts its retries
// fails the whole call with no partial output.
func (s *Service) EmbedChunks(ctx context.Context, chunks []models.TextChunk) ([]models.Vector, error) {
	if len(chunks) == 0 {
		return []models.Vector{}, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	embs, err := s.embedAll(ctx, texts, TaskRetrievalDocument, s.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	vectors := make([]models.Vector, len(chunks))
	for i := range chunks {
		vectors[i] = models.Vector{
			ChunkID:   chunks[i].ChunkID,
			Embedding: embs[i],
			Model:     s.cfg.Model,
			Timestamp: now,
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text. One attempt, no retry loop: the
// online path fails fast and leaves retrying to the caller's client.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := s.embedAll(ctx, []string{text}, TaskRetrievalQuery, 0)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// embedAll resolves texts against the cache, then fills misses through the
// API in batches of BatchSize, preserving input order.
func (s *Service) embedAll(ctx context.Context, texts []string, taskType string, maxRetries int) ([][]float32, error) {
	out := make([][]float32, len(texts))

	missIdx := make([]int, 0, len(texts))
	for i, t := range texts {
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, MakeKey(s.cfg.Model, taskType, t)); ok {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missIdx); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batchIdx := missIdx[start:end]

		batchTexts := make([]string, len(batchIdx))
		for j, i := range batchIdx {
			batchTexts[j] = texts[i]
		}

		if s.pacer != nil {
			if err := s.pacer.Wait(ctx, batchTexts); err != nil {
				return nil, err
			}
		}

		vals, err := s.predict(ctx, batchTexts, taskType, maxRetries)
		if err != nil {
			return nil, err
		}

		for j, i := range batchIdx {
			out[i] = vals[j]
			if s.cache != nil {
				s.cache.Put(ctx, MakeKey(s.cfg.Model, taskType, texts[i]), vals[j])
			}
		}
	}

	return out, nil
}

// predict runs one batch through the API with a bounded retry loop.
// Attempt k sleeps RetryBaseDelay << k before the next try. Permanent
// errors and exhausted budgets surface immediately.
func (s *Service) predict(ctx context.Context, texts []string, taskType string, maxRetries int) ([][]float32, error) {
	for attempt := 0; ; attempt++ {
		vals, err := s.predictOnce(ctx, texts, taskType)
		if err == nil {
			return vals, nil
		}

		var ee *EmbeddingError
		if errors.As(err, &ee) && ee.Permanent {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, err
		}

		metrics.EmbeddingRetries.WithLabelValues(s.cfg.Model).Inc()
		delay := s.cfg.RetryBaseDelay << uint(attempt)
		s.logger.Warn("Embedding call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Service) predictOnce(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	instances := make([]predictInstance, len(texts))
	for i, t := range texts {
		instances[i] = predictInstance{Content: t, TaskType: taskType}
	}
	buf, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return nil, &EmbeddingError{Op: "marshal", Permanent: true, Err: err}
	}

	url := s.predictURL()
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, &EmbeddingError{Op: "request", Permanent: true, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		metrics.RecordEmbeddingMetrics(s.cfg.Model, "error", time.Since(start).Seconds())
		return nil, &EmbeddingError{Op: "predict", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordEmbeddingMetrics(s.cfg.Model, "error", time.Since(start).Seconds())
		permanent := resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusTooManyRequests
		return nil, &EmbeddingError{
			Op:         "predict",
			StatusCode: resp.StatusCode,
			Permanent:  permanent,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		metrics.RecordEmbeddingMetrics(s.cfg.Model, "error", time.Since(start).Seconds())
		return nil, &EmbeddingError{Op: "decode", Err: err}
	}

	if len(pr.Predictions) != len(texts) {
		metrics.RecordEmbeddingMetrics(s.cfg.Model, "error", time.Since(start).Seconds())
		return nil, &EmbeddingError{
			Op:        "predict",
			Permanent: true,
			Err:       fmt.Errorf("got %d predictions for %d texts", len(pr.Predictions), len(texts)),
		}
	}

	vals := make([][]float32, len(texts))
	for i, p := range pr.Predictions {
		if len(p.Embeddings.Values) != s.cfg.Dimension {
			metrics.RecordEmbeddingMetrics(s.cfg.Model, "error", time.Since(start).Seconds())
			return nil, &EmbeddingError{
				Op:        "predict",
				Permanent: true,
				Err: fmt.Errorf("embedding %d has dimension %d, want %d",
					i, len(p.Embeddings.Values), s.cfg.Dimension),
			}
		}
		vals[i] = p.Embeddings.Values
	}

	metrics.RecordEmbeddingMetrics(s.cfg.Model, "ok", time.Since(start).Seconds())
	return vals, nil
}

func (s *Service) predictURL() string {
	base := s.cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", s.cfg.Location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		base, s.cfg.ProjectID, s.cfg.Location, s.cfg.Model)
}
