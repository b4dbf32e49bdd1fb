package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wikivec/wikivec/internal/cache"
	"github.com/wikivec/wikivec/internal/config"
	"github.com/wikivec/wikivec/internal/health"
	"github.com/wikivec/wikivec/internal/models"
)

type stubSearcher struct {
	mu      sync.Mutex
	calls   int
	gotTopK int
	matches []models.SearchMatch
	err     error
	delay   time.Duration
	panicky bool
}

func (s *stubSearcher) Query(ctx context.Context, text string, topK int) ([]models.SearchMatch, error) {
	s.mu.Lock()
	s.calls++
	s.gotTopK = topK
	s.mu.Unlock()

	if s.panicky {
		panic("searcher exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.matches, s.err
}

func (s *stubSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubSearcher) TopK() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotTopK
}

type stubSummarizer struct {
	mu           sync.Mutex
	tokens       []string
	err          error
	block        bool
	done         chan struct{}
	gotContent   string
	gotMaxTokens int
}

func (s *stubSummarizer) StreamSummary(ctx context.Context, text string, maxTokens int, emit func(string) error) error {
	s.mu.Lock()
	s.gotContent = text
	s.gotMaxTokens = maxTokens
	s.mu.Unlock()
	if s.done != nil {
		defer close(s.done)
	}

	for _, tok := range s.tokens {
		if err := emit(tok); err != nil {
			return err
		}
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *stubSummarizer) Received() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotContent, s.gotMaxTokens
}

func freshCache(t *testing.T) *cache.ResultCache {
	t.Helper()
	c, err := cache.New(1000, 5*time.Minute)
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, results *cache.ResultCache) (*Server, *stubSearcher, *stubSummarizer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.APIURL = "http://localhost:8080"
	searcher := &stubSearcher{}
	summarizer := &stubSummarizer{}
	srv := NewServer(&cfg, searcher, summarizer, results, nil, zaptest.NewLogger(t))
	return srv, searcher, summarizer
}

func TestHealthEndpointExactBody(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"status":"healthy","service":"search-api"}`, strings.TrimRight(rec.Body.String(), "\n"))
}

func TestReadyWithoutManager(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestReadyReflectsCriticalFailure(t *testing.T) {
	mgr := health.NewManager(zaptest.NewLogger(t))
	require.NoError(t, mgr.Register(health.NewFuncChecker("config", true, time.Second, func(ctx context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusUnhealthy, Error: "missing PROJECT_ID"}
	})))

	cfg := config.Defaults()
	srv := NewServer(&cfg, &stubSearcher{}, &stubSummarizer{}, nil, mgr, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":false`)
}

func TestReadyHealthyManager(t *testing.T) {
	mgr := health.NewManager(zaptest.NewLogger(t))
	require.NoError(t, mgr.Register(health.NewFuncChecker("config", true, time.Second, func(ctx context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusHealthy}
	})))

	cfg := config.Defaults()
	srv := NewServer(&cfg, &stubSearcher{}, &stubSummarizer{}, nil, mgr, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}

func TestConfigEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"api_url":"http://localhost:8080"}`, rec.Body.String())
}

func TestRequestIDGenerated(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDHonored(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", rec.Header().Get("X-Request-ID"))
}

func TestPanicRecoveredAsInternalError(t *testing.T) {
	srv, searcher, _ := newTestServer(t, freshCache(t))
	searcher.panicky = true

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"internal error"`)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("{}")))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
