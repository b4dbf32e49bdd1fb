// Package ingest orchestrates the offline pipeline: walk an HTML corpus,
// chunk it, embed the chunks and write the ANN ingestion file. Single
// threaded on purpose; the embedding batch loop paces itself against the
// model's quotas.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/chunker"
	"github.com/wikivec/wikivec/internal/indexprep"
	"github.com/wikivec/wikivec/internal/metrics"
	"github.com/wikivec/wikivec/internal/models"
)

// Embedder turns chunks into vectors. Implemented by *embeddings.Service.
type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []models.TextChunk) ([]models.Vector, error)
}

// Stats summarizes one pipeline run.
type Stats struct {
	Documents  int
	Chunks     int
	Vectors    int
	OutputPath string
	Bytes      int64
	Elapsed    time.Duration
}

// Pipeline wires Chunker, Embedder and the index-prep writer.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
	writer   *indexprep.Writer
	logger   *zap.Logger
}

// New builds a pipeline. All dependencies are required.
func New(ch *chunker.Chunker, embedder Embedder, writer *indexprep.Writer, logger *zap.Logger) (*Pipeline, error) {
	if ch == nil || embedder == nil || writer == nil {
		return nil, fmt.Errorf("ingest: chunker, embedder and writer are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{chunker: ch, embedder: embedder, writer: writer, logger: logger}, nil
}

// Run processes every *.html file under inputDir in name order and writes
// one ingestion file. Documents whose cleaned text is empty contribute no
// chunks but are still counted; any read, embed or write failure aborts the
// run.
func (p *Pipeline) Run(ctx context.Context, inputDir, outDir, outFile string) (Stats, error) {
	start := time.Now()
	stats := Stats{}

	files, err := listHTML(inputDir)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		return stats, fmt.Errorf("ingest: no .html files found in %s", inputDir)
	}

	var chunks []models.TextChunk
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw, err := os.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			return stats, fmt.Errorf("ingest: read %s: %w", name, err)
		}

		docID := strings.TrimSuffix(name, filepath.Ext(name))
		md := map[string]interface{}{
			"source_file": name,
			"title":       strings.ReplaceAll(docID, "_", " "),
		}

		docChunks := p.chunker.Chunk(string(raw), docID, md)
		stats.Documents++
		metrics.IngestDocuments.Inc()

		if len(docChunks) == 0 {
			p.logger.Warn("Document produced no chunks", zap.String("doc_id", docID))
			continue
		}

		chunks = append(chunks, docChunks...)
		metrics.IngestChunks.Add(float64(len(docChunks)))
		p.logger.Debug("Document chunked",
			zap.String("doc_id", docID),
			zap.Int("chunks", len(docChunks)),
		)
	}
	stats.Chunks = len(chunks)

	vectors, err := p.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return stats, fmt.Errorf("ingest: embed: %w", err)
	}
	stats.Vectors = len(vectors)

	path, err := p.writer.Write(vectors, chunks, outDir, outFile)
	if err != nil {
		return stats, fmt.Errorf("ingest: write: %w", err)
	}
	stats.OutputPath = path

	if info, err := os.Stat(path); err == nil {
		stats.Bytes = info.Size()
	}
	stats.Elapsed = time.Since(start)

	p.logger.Info("Ingestion complete",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("vectors", stats.Vectors),
		zap.String("output", stats.OutputPath),
		zap.Int64("bytes", stats.Bytes),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// listHTML returns the .html file names in dir, sorted for deterministic
// chunk ids across runs.
func listHTML(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".html") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
