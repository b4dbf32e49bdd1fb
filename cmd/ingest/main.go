// Command wikivec-ingest runs the offline pipeline: chunk a directory of
// cleaned Wikipedia HTML, embed every chunk and write the JSONL file the
// managed ANN index builder ingests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wikivec/wikivec/internal/chunker"
	"github.com/wikivec/wikivec/internal/config"
	"github.com/wikivec/wikivec/internal/embeddings"
	"github.com/wikivec/wikivec/internal/indexprep"
	"github.com/wikivec/wikivec/internal/ingest"
	"github.com/wikivec/wikivec/internal/ratecontrol"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	inputDir := flag.String("input", "", "Directory of cleaned .html documents (required)")
	outputDir := flag.String("output-dir", "data", "Directory for the index ingestion file")
	outputFile := flag.String("output-file", "embeddings.json", "Name of the index ingestion file")
	chunkSize := flag.Int("chunk-size", 450, "Tokens per chunk window")
	overlap := flag.Int("overlap", 80, "Tokens shared by consecutive windows")
	flag.Parse()

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: wikivec-ingest -input /path/to/html [-output-dir data] [-output-file embeddings.json]")
		return exitConfig
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return exitFailed
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return exitConfig
	}
	if err := cfg.ValidateIngest(); err != nil {
		logger.Error("Configuration incomplete", zap.Error(err))
		return exitConfig
	}

	ch, err := chunker.New(chunker.Config{ChunkSize: *chunkSize, Overlap: *overlap})
	if err != nil {
		logger.Error("Invalid chunking configuration", zap.Error(err))
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient, err := newAPIClient(ctx)
	if err != nil {
		if cfg.VertexEndpoint == "" {
			logger.Error("Failed to resolve application default credentials", zap.Error(err))
			return exitConfig
		}
		logger.Warn("No application default credentials, calling endpoint unauthenticated",
			zap.String("endpoint", cfg.VertexEndpoint),
			zap.Error(err),
		)
		apiClient = &http.Client{Timeout: 120 * time.Second}
	}

	embedCache, err := embeddings.NewCache(cfg.EmbedCacheSize, cfg.RedisURL, 24*time.Hour, logger)
	if err != nil {
		logger.Error("Failed to initialize embedding cache", zap.Error(err))
		return exitFailed
	}
	defer embedCache.Close()

	// Quotas come from the optional limits file and the environment; the
	// tighter value wins on each axis.
	limits := ratecontrol.CombineLimits(
		ratecontrol.LoadLimits(cfg.RateLimitsPath, cfg.EmbeddingModel, logger),
		ratecontrol.Limits{RPM: cfg.EmbedRPM, TPM: cfg.EmbedTPM},
	)
	var pacer *ratecontrol.Pacer
	if limits.RPM > 0 || limits.TPM > 0 {
		pacer = ratecontrol.NewPacer(limits, logger)
		logger.Info("Embedding calls paced",
			zap.Int("rpm", limits.RPM),
			zap.Int("tpm", limits.TPM),
		)
	}

	embedder := embeddings.New(embeddings.Config{
		ProjectID:  cfg.ProjectID,
		Location:   cfg.Location,
		Model:      cfg.EmbeddingModel,
		Dimension:  cfg.EmbeddingDimension,
		BatchSize:  cfg.EmbedBatchSize,
		MaxRetries: cfg.EmbedMaxRetries,
		Endpoint:   cfg.VertexEndpoint,
		Timeout:    120 * time.Second,
	}, apiClient, embedCache, pacerOrNil(pacer), logger.With(zap.String("component", "embeddings")))

	writer, err := indexprep.NewWriter(cfg.EmbeddingDimension, logger)
	if err != nil {
		logger.Error("Failed to initialize index writer", zap.Error(err))
		return exitConfig
	}

	pipeline, err := ingest.New(ch, embedder, writer, logger)
	if err != nil {
		logger.Error("Failed to assemble pipeline", zap.Error(err))
		return exitFailed
	}

	stats, err := pipeline.Run(ctx, *inputDir, *outputDir, *outputFile)
	if err != nil {
		logger.Error("Ingestion failed",
			zap.Int("documents", stats.Documents),
			zap.Int("chunks", stats.Chunks),
			zap.Error(err),
		)
		return exitFailed
	}

	logger.Info("Index file ready for upload",
		zap.String("path", stats.OutputPath),
		zap.Int("vectors", stats.Vectors),
	)
	return exitOK
}

// newAPIClient builds the authenticated HTTP client for the embedding
// endpoint: Application Default Credentials over a timeout-configured base
// transport. Bulk embedding calls get a generous timeout.
func newAPIClient(ctx context.Context) (*http.Client, error) {
	base := &http.Client{Timeout: 120 * time.Second}

	ts, err := google.DefaultTokenSource(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, err
	}

	authCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(authCtx, ts), nil
}

// pacerOrNil avoids handing the embedder a typed nil inside a non-nil
// interface value.
func pacerOrNil(p *ratecontrol.Pacer) embeddings.Pacer {
	if p == nil {
		return nil
	}
	return p
}
