// Package vectordb queries the managed ANN index endpoint. One lookup embeds
// the query text, fetches nearest neighbors, and converts distances to
// similarity scores.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/circuitbreaker"
	"github.com/wikivec/wikivec/internal/metrics"
	"github.com/wikivec/wikivec/internal/models"
	"github.com/wikivec/wikivec/internal/tracing"
)

// QueryEmbedder turns query text into a feature vector. Satisfied by
// *embeddings.Service.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client executes similarity lookups against one deployed index.
type Client struct {
	cfg      Config
	embedder QueryEmbedder
	httpw    *circuitbreaker.HTTPWrapper
	log      *zap.Logger

	// last query wall-clock duration in ms, stored as float64 bits
	lastLatencyMS atomic.Uint64
}

// New validates the deployment coordinates and builds a client. httpClient
// should carry auth transport; nil gets a default client with cfg.Timeout.
func New(cfg Config, embedder QueryEmbedder, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.IndexEndpointID == "" || cfg.DeployedIndexID == "" {
		return nil, fmt.Errorf("vectordb: project, location, index endpoint and deployed index are all required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("vectordb: query embedder is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		embedder: embedder,
		httpw:    circuitbreaker.NewHTTPWrapper(httpClient, "vectordb", logger),
		log:      logger,
	}, nil
}

// Config returns the active configuration.
func (c *Client) Config() Config { return c.cfg }

// BreakerState reports the ANN endpoint's circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State { return c.httpw.State() }

// Query embeds text and returns up to topK matches in descending score
// order. topK <= 0 uses the configured default. An empty neighbor set is an
// empty slice, not an error.
func (c *Client) Query(ctx context.Context, text string, topK int) ([]models.SearchMatch, error) {
	if topK <= 0 {
		topK = c.cfg.DefaultTopK
	}

	start := time.Now()
	defer func() {
		c.lastLatencyMS.Store(math.Float64bits(float64(time.Since(start).Nanoseconds()) / 1e6))
	}()

	embedding, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		metrics.RecordVectorSearchMetrics("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("embed query: %w", err)
	}

	neighbors, err := c.findNeighbors(ctx, embedding, topK)
	if err != nil {
		metrics.RecordVectorSearchMetrics("error", time.Since(start).Seconds())
		return nil, err
	}

	matches := neighborsToMatches(neighbors)
	metrics.RecordVectorSearchMetrics("ok", time.Since(start).Seconds())
	c.log.Debug("Vector query completed",
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return matches, nil
}

// LastQueryLatencyMS reports the wall-clock duration of the most recent
// Query call, successful or not.
func (c *Client) LastQueryLatencyMS() float64 {
	return math.Float64frombits(c.lastLatencyMS.Load())
}

func (c *Client) findNeighbors(ctx context.Context, embedding []float32, topK int) ([]neighbor, error) {
	body := findNeighborsRequest{
		DeployedIndexID: c.cfg.DeployedIndexID,
		Queries: []neighborQuery{{
			Datapoint:     queryDatapoint{FeatureVector: embedding},
			NeighborCount: topK,
		}},
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, &QueryError{Op: "marshal", Err: err}
	}

	url := c.lookupURL()
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, &QueryError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, &QueryError{Op: "find_neighbors", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &QueryError{
			Op:         "find_neighbors",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(msg))),
		}
	}

	var fr findNeighborsResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, &QueryError{Op: "decode", Err: err}
	}
	if len(fr.NearestNeighbors) == 0 {
		return nil, nil
	}
	return fr.NearestNeighbors[0].Neighbors, nil
}

func (c *Client) lookupURL() string {
	base := c.cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.cfg.Location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/indexEndpoints/%s:findNeighbors",
		base, c.cfg.ProjectID, c.cfg.Location, c.cfg.IndexEndpointID)
}
