package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

// fakeANN serves findNeighbors with a fixed neighbor list and records the
// request bodies it sees.
type fakeANN struct {
	mu        sync.Mutex
	requests  []findNeighborsRequest
	paths     []string
	neighbors []map[string]interface{}
	status    int
}

func (f *fakeANN) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req findNeighborsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.paths = append(f.paths, r.URL.Path)
		status := f.status
		neighbors := f.neighbors
		f.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			http.Error(w, "index unavailable", status)
			return
		}
		resp := map[string]interface{}{
			"nearestNeighbors": []map[string]interface{}{
				{"id": "0", "neighbors": neighbors},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func nb(id string, distance float64) map[string]interface{} {
	return map[string]interface{}{
		"datapoint": map[string]interface{}{"datapointId": id},
		"distance":  distance,
	}
}

func newTestClient(t *testing.T, fake *fakeANN, embedder QueryEmbedder) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{
		ProjectID:       "test-project",
		Location:        "us-central1",
		IndexEndpointID: "1234567890",
		DeployedIndexID: "wiki_deployed",
		Endpoint:        srv.URL,
	}, embedder, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestQueryScoresAndOrder(t *testing.T) {
	fake := &fakeANN{neighbors: []map[string]interface{}{
		nb("doc_chunk_0", 0.0),
		nb("doc_chunk_1", 1.0),
		nb("doc_chunk_2", 3.0),
	}}
	c := newTestClient(t, fake, &stubEmbedder{vec: []float32{0.1, 0.2}})

	matches, err := c.Query(context.Background(), "telephone", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "doc_chunk_0", matches[0].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9, "distance 0 maps to score 1")
	assert.Equal(t, "doc_chunk_1", matches[1].ChunkID)
	assert.InDelta(t, 0.5, matches[1].Score, 1e-9)
	assert.Equal(t, "doc_chunk_2", matches[2].ChunkID)
	assert.InDelta(t, 0.25, matches[2].Score, 1e-9)

	for _, m := range matches {
		assert.Empty(t, m.Content, "content is not hydrated here")
		assert.Empty(t, m.Metadata)
	}

	assert.Greater(t, c.LastQueryLatencyMS(), 0.0)
	assert.Equal(t,
		"/v1/projects/test-project/locations/us-central1/indexEndpoints/1234567890:findNeighbors",
		fake.paths[0])
}

func TestQueryClampsNegativeDistance(t *testing.T) {
	fake := &fakeANN{neighbors: []map[string]interface{}{
		nb("doc_chunk_0", -0.5),
		nb("doc_chunk_1", 0.5),
	}}
	c := newTestClient(t, fake, &stubEmbedder{vec: []float32{0.1}})

	matches, err := c.Query(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9, "negative distance clamps to score 1")
	assert.LessOrEqual(t, matches[0].Score, 1.0)
}

func TestQueryStableTieOrder(t *testing.T) {
	fake := &fakeANN{neighbors: []map[string]interface{}{
		nb("first", 0.7),
		nb("second", 0.7),
		nb("third", 0.7),
	}}
	c := newTestClient(t, fake, &stubEmbedder{vec: []float32{0.1}})

	matches, err := c.Query(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "first", matches[0].ChunkID)
	assert.Equal(t, "second", matches[1].ChunkID)
	assert.Equal(t, "third", matches[2].ChunkID)
}

func TestQueryEmptyNeighborsIsEmptyList(t *testing.T) {
	fake := &fakeANN{neighbors: []map[string]interface{}{}}
	c := newTestClient(t, fake, &stubEmbedder{vec: []float32{0.1}})

	matches, err := c.Query(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQueryRequestShape(t *testing.T) {
	fake := &fakeANN{neighbors: []map[string]interface{}{nb("a", 0.1)}}
	embedder := &stubEmbedder{vec: []float32{0.25, -0.5, 0.75}}
	c := newTestClient(t, fake, embedder)

	_, err := c.Query(context.Background(), "q", 0)
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)

	req := fake.requests[0]
	assert.Equal(t, "wiki_deployed", req.DeployedIndexID)
	require.Len(t, req.Queries, 1)
	assert.Equal(t, 10, req.Queries[0].NeighborCount, "topK <= 0 falls back to default")
	assert.Equal(t, []float32{0.25, -0.5, 0.75}, req.Queries[0].Datapoint.FeatureVector)
	assert.Equal(t, 1, embedder.calls)
}

func TestQueryUpstreamFailure(t *testing.T) {
	fake := &fakeANN{status: http.StatusInternalServerError}
	c := newTestClient(t, fake, &stubEmbedder{vec: []float32{0.1}})

	_, err := c.Query(context.Background(), "q", 3)
	require.Error(t, err)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, http.StatusInternalServerError, qe.StatusCode)
	assert.Greater(t, c.LastQueryLatencyMS(), 0.0, "latency is recorded on failures too")
}

func TestQueryEmbedderFailure(t *testing.T) {
	sentinel := errors.New("model down")
	fake := &fakeANN{neighbors: []map[string]interface{}{nb("a", 0.1)}}
	c := newTestClient(t, fake, &stubEmbedder{err: sentinel})

	_, err := c.Query(context.Background(), "q", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Empty(t, fake.requests, "no lookup without an embedding")
}

func TestNewValidatesConfig(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{0.1}}
	base := Config{
		ProjectID:       "p",
		Location:        "l",
		IndexEndpointID: "e",
		DeployedIndexID: "d",
	}

	for _, blank := range []func(*Config){
		func(c *Config) { c.ProjectID = "" },
		func(c *Config) { c.Location = "" },
		func(c *Config) { c.IndexEndpointID = "" },
		func(c *Config) { c.DeployedIndexID = "" },
	} {
		cfg := base
		blank(&cfg)
		_, err := New(cfg, embedder, nil, nil)
		assert.Error(t, err)
	}

	_, err := New(base, nil, nil, nil)
	assert.Error(t, err, "embedder is required")
}

func TestValidateDeployedIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/projects/test-project/locations/us-central1/indexEndpoints/1234567890",
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"displayName": "wiki-endpoint",
				"deployedIndexes": []map[string]interface{}{
					{"id": "other_index"},
					{"id": "wiki_deployed"},
				},
			})
		})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(Config{
		ProjectID:       "test-project",
		Location:        "us-central1",
		IndexEndpointID: "1234567890",
		DeployedIndexID: "wiki_deployed",
		Endpoint:        srv.URL,
	}, &stubEmbedder{vec: []float32{0.1}}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, c.ValidateDeployedIndex(context.Background()))

	missing, err := New(Config{
		ProjectID:       "test-project",
		Location:        "us-central1",
		IndexEndpointID: "1234567890",
		DeployedIndexID: "absent_index",
		Endpoint:        srv.URL,
	}, &stubEmbedder{vec: []float32{0.1}}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)

	err = missing.ValidateDeployedIndex(context.Background())
	require.Error(t, err)
	var nf *DeployedIndexNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Available, "wiki_deployed")
	assert.Contains(t, err.Error(), "absent_index")
}

func TestScoreFromDistance(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0, 1.0},
		{1, 0.5},
		{3, 0.25},
		{-2, 1.0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, scoreFromDistance(tc.distance), 1e-9,
			fmt.Sprintf("distance %v", tc.distance))
	}

	// Monotone: larger distance, smaller score, always within (0,1].
	prev := 1.1
	for d := 0.0; d < 50; d += 0.5 {
		s := scoreFromDistance(d)
		assert.Less(t, s, prev)
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		prev = s
	}
}
