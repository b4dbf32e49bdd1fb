package vectordb

import (
	"fmt"
	"time"
)

// Config identifies the deployed ANN index and tunes lookup behavior.
type Config struct {
	ProjectID       string
	Location        string
	IndexEndpointID string
	DeployedIndexID string
	// Endpoint overrides the regional API host, mainly for tests.
	Endpoint string
	// DefaultTopK is used when a query does not specify a neighbor count.
	DefaultTopK int
	// Timeout for a single lookup call.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 10
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// QueryError reports a failed ANN lookup.
type QueryError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vectordb: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("vectordb: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// findNeighbors wire types, matching the managed index endpoint's REST shape.

type findNeighborsRequest struct {
	DeployedIndexID string          `json:"deployedIndexId"`
	Queries         []neighborQuery `json:"queries"`
}

type neighborQuery struct {
	Datapoint     queryDatapoint `json:"datapoint"`
	NeighborCount int            `json:"neighborCount"`
}

type queryDatapoint struct {
	FeatureVector []float32 `json:"featureVector"`
}

type neighbor struct {
	Datapoint struct {
		DatapointID string `json:"datapointId"`
	} `json:"datapoint"`
	Distance float64 `json:"distance"`
}

type findNeighborsResponse struct {
	NearestNeighbors []struct {
		ID        string     `json:"id"`
		Neighbors []neighbor `json:"neighbors"`
	} `json:"nearestNeighbors"`
}
