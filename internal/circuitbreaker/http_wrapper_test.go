package circuitbreaker

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestHTTPWrapperPassesThroughResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wrapper := NewHTTPWrapper(srv.Client(), "test-http", zaptest.NewLogger(t))

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := wrapper.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if wrapper.State() != StateClosed {
		t.Errorf("Expected closed breaker, got %v", wrapper.State())
	}
}

func TestHTTPWrapperOpensOnServerErrors(t *testing.T) {
	t.Setenv("CB_HTTP_FAILURE_THRESHOLD", "3")
	t.Setenv("CB_HTTP_TIMEOUT", "60s")

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wrapper := NewHTTPWrapper(srv.Client(), "test-http", zaptest.NewLogger(t))

	// 5xx responses are surfaced to the caller but counted as failures.
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := wrapper.Do(req)
		if err != nil {
			t.Fatalf("Request %d: expected response, got error %v", i, err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("Request %d: expected 502, got %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	if wrapper.State() != StateOpen {
		t.Fatalf("Expected open breaker after 3 server errors, got %v", wrapper.State())
	}

	// Open breaker fails fast without reaching the server.
	before := hits.Load()
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := wrapper.Do(req); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
	if hits.Load() != before {
		t.Error("Open breaker should not forward requests")
	}
}

func TestHTTPWrapperIgnoresClientErrors(t *testing.T) {
	t.Setenv("CB_HTTP_FAILURE_THRESHOLD", "3")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	wrapper := NewHTTPWrapper(srv.Client(), "test-http", zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := wrapper.Do(req)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		resp.Body.Close()
	}

	if wrapper.State() != StateClosed {
		t.Errorf("4xx responses should not trip the breaker, got %v", wrapper.State())
	}
}
