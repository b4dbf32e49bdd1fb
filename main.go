// Command wikivec runs the online query service: vector search over the
// Wikipedia chunk index with cached results and streamed summaries.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wikivec/wikivec/internal/cache"
	"github.com/wikivec/wikivec/internal/config"
	"github.com/wikivec/wikivec/internal/embeddings"
	"github.com/wikivec/wikivec/internal/genai"
	"github.com/wikivec/wikivec/internal/health"
	"github.com/wikivec/wikivec/internal/httpapi"
	"github.com/wikivec/wikivec/internal/tracing"
	"github.com/wikivec/wikivec/internal/vectordb"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := cfg.ValidateService(); err != nil {
		logger.Fatal("Configuration incomplete", zap.Error(err))
	}

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "wikivec",
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without", zap.Error(err))
	}

	// All three managed services share one authenticated HTTP client.
	ctx := context.Background()
	apiClient := newAPIClient(ctx, cfg, logger)

	embedCache, err := embeddings.NewCache(cfg.EmbedCacheSize, cfg.RedisURL, 24*time.Hour, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedding cache", zap.Error(err))
	}
	defer embedCache.Close()

	embedder := embeddings.New(embeddings.Config{
		ProjectID: cfg.ProjectID,
		Location:  cfg.Location,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		BatchSize: cfg.EmbedBatchSize,
		Endpoint:  cfg.VertexEndpoint,
		Timeout:   cfg.RequestTimeout(),
	}, apiClient, embedCache, nil, logger.With(zap.String("component", "embeddings")))

	searcher, err := vectordb.New(vectordb.Config{
		ProjectID:       cfg.ProjectID,
		Location:        cfg.Location,
		IndexEndpointID: cfg.IndexEndpointID,
		DeployedIndexID: cfg.DeployedIndexID,
		Endpoint:        cfg.VertexEndpoint,
		DefaultTopK:     cfg.DefaultTopK,
		Timeout:         cfg.RequestTimeout(),
	}, embedder, apiClient, logger.With(zap.String("component", "vectordb")))
	if err != nil {
		logger.Fatal("Failed to initialize vector index client", zap.Error(err))
	}

	summarizer, err := genai.New(genai.Config{
		ProjectID: cfg.ProjectID,
		Location:  cfg.Location,
		Model:     cfg.SummaryModel,
		Endpoint:  cfg.VertexEndpoint,
	}, apiClient, logger.With(zap.String("component", "genai")))
	if err != nil {
		logger.Fatal("Failed to initialize generative model client", zap.Error(err))
	}

	results, err := cache.New(cfg.CacheMaxEntries, cfg.CacheTTL())
	if err != nil {
		logger.Fatal("Failed to initialize result cache", zap.Error(err))
	}

	healthMgr := health.NewManager(logger)
	mustRegister(logger, healthMgr, health.NewConfigChecker(cfg))
	mustRegister(logger, healthMgr, health.NewBreakerChecker("vector_index", true, searcher.BreakerState))
	mustRegister(logger, healthMgr, health.NewBreakerChecker("generative_model", false, summarizer.BreakerState))

	// Serve Prometheus metrics on a separate listener so scrapes never
	// compete with query traffic.
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		addr := ":" + strconv.Itoa(cfg.MetricsPort)
		logger.Info("Metrics server starting", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, metricsMux); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	api := httpapi.NewServer(cfg, searcher, summarizer, results, healthMgr, logger)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:      corsMiddleware(api.Routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE/streaming support
		IdleTimeout:  300 * time.Second,
	}

	go func() {
		logger.Info("Query service starting",
			zap.Int("port", cfg.HTTPPort),
			zap.String("embedding_model", cfg.EmbeddingModel),
			zap.String("summary_model", cfg.SummaryModel),
			zap.String("index_endpoint_id", cfg.IndexEndpointID),
			zap.String("deployed_index_id", cfg.DeployedIndexID),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start query service", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Query service shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Query service forced to shutdown", zap.Error(err))
	}

	logger.Info("Query service stopped")
}

// newAPIClient builds the authenticated HTTP client shared by the managed
// model endpoints: Application Default Credentials over a timeout-configured
// base transport. When VERTEX_ENDPOINT points at a private or stub endpoint
// the service may run without credentials.
func newAPIClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) *http.Client {
	base := &http.Client{Timeout: 60 * time.Second}

	ts, err := google.DefaultTokenSource(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		if cfg.VertexEndpoint == "" {
			logger.Fatal("Failed to resolve application default credentials", zap.Error(err))
		}
		logger.Warn("No application default credentials, calling endpoint unauthenticated",
			zap.String("endpoint", cfg.VertexEndpoint),
			zap.Error(err),
		)
		return base
	}

	// Wrap the timeout-configured HTTP client with OAuth2.
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(authCtx, ts)
}

func mustRegister(logger *zap.Logger, mgr *health.Manager, checker health.Checker) {
	if err := mgr.Register(checker); err != nil {
		logger.Fatal("Failed to register health checker", zap.Error(err))
	}
}

// corsMiddleware adds CORS headers so the demo UI can call the API from
// another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedHeaders := "Content-Type, X-Request-ID, traceparent, tracestate, Cache-Control, Last-Event-ID"

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			// Handle preflight - headers already set above
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
