// Package indexprep serializes embedding vectors into the JSONL ingestion
// format consumed by the managed ANN index builder. Pure serialization: no
// API calls, deterministic bytes for a given input order.
package indexprep

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/models"
)

// SchemaError reports a record that violates the index schema.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "indexprep: schema: " + e.Reason }

// Writer materializes IndexRecords for a fixed embedding dimension.
type Writer struct {
	dim    int
	logger *zap.Logger
}

// NewWriter returns a writer that rejects vectors whose width is not
// dimension.
func NewWriter(dimension int, logger *zap.Logger) (*Writer, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("indexprep: dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dim: dimension, logger: logger}, nil
}

// Write serializes vectors to {outDir}/{filename} as JSONL, one IndexRecord
// per line, LF terminated, no trailing blank line. chunks is optional; when
// present it must parallel vectors (same length, matching chunk ids) and its
// text and metadata are folded into each record. All records are validated
// before any byte is written, so a failed call leaves no partial file.
func (w *Writer) Write(vectors []models.Vector, chunks []models.TextChunk, outDir, filename string) (string, error) {
	records, err := w.buildRecords(vectors, chunks)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("indexprep: create output dir: %w", err)
	}
	path := filepath.Join(outDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("indexprep: create %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			f.Close()
			return "", fmt.Errorf("indexprep: encode record %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("indexprep: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("indexprep: close %s: %w", path, err)
	}

	w.logger.Info("Wrote index records",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return path, nil
}

func (w *Writer) buildRecords(vectors []models.Vector, chunks []models.TextChunk) ([]models.IndexRecord, error) {
	if chunks != nil && len(chunks) != len(vectors) {
		return nil, &SchemaError{Reason: fmt.Sprintf(
			"got %d chunks for %d vectors", len(chunks), len(vectors))}
	}

	records := make([]models.IndexRecord, len(vectors))
	for i, v := range vectors {
		if len(v.Embedding) != w.dim {
			return nil, &SchemaError{Reason: fmt.Sprintf(
				"record %d (%s) has dimension %d, want %d", i, v.ChunkID, len(v.Embedding), w.dim)}
		}

		rec := models.IndexRecord{
			ID:        v.ChunkID,
			Embedding: v.Embedding,
			Restricts: []models.Restrict{},
			Metadata:  map[string]interface{}{},
		}

		if chunks != nil {
			ch := chunks[i]
			if ch.ChunkID != v.ChunkID {
				return nil, &SchemaError{Reason: fmt.Sprintf(
					"record %d: vector chunk_id %q does not match chunk %q", i, v.ChunkID, ch.ChunkID)}
			}
			for k, val := range ch.Metadata {
				rec.Metadata[k] = val
			}
			rec.Metadata["token_count"] = ch.TokenCount
			rec.Metadata["content"] = ch.Content
			if ch.SourceFile != "" {
				rec.Restricts = []models.Restrict{
					{Namespace: "source", AllowList: []string{ch.SourceFile}},
				}
			}
		}

		records[i] = rec
	}
	return records, nil
}
