package embeddings

import (
	"fmt"
	"time"
)

// Task types accepted by the embedding model. Document and query texts are
// embedded differently, so the task type is part of every cache key.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Config controls the embedding client.
type Config struct {
	// ProjectID and Location identify the managed model deployment.
	ProjectID string
	Location  string
	// Model is the publisher model name, e.g. text-embedding-004.
	Model string
	// Dimension is the expected vector width. Responses with any other
	// width are rejected.
	Dimension int
	// BatchSize caps how many texts go into one predict call.
	BatchSize int
	// MaxRetries bounds retries after the first attempt, batch path only.
	MaxRetries int
	// RetryBaseDelay is the sleep before the first retry; attempt k sleeps
	// RetryBaseDelay << k.
	RetryBaseDelay time.Duration
	// Endpoint overrides the regional API host, mainly for tests.
	Endpoint string
	// Timeout for a single predict call.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Model == "" {
		c.Model = "text-embedding-004"
	}
}

// EmbeddingError reports a failed embedding call. Permanent errors (4xx
// other than 429, dimension mismatches) are never retried.
type EmbeddingError struct {
	Op         string
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *EmbeddingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embeddings: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embeddings: %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
