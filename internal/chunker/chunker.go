// Package chunker turns cleaned HTML documents into ordered, overlapping
// token windows ready for embedding. Chunking is pure and deterministic:
// the same input and configuration always produce byte-identical chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/wikivec/wikivec/internal/models"
)

// Config controls window geometry. Tokens are whitespace-delimited words
// (strings.Fields); token_count is defined against that tokenizer.
type Config struct {
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
	Overlap   int `mapstructure:"overlap" yaml:"overlap"`
}

// DefaultConfig returns the deployment defaults: 450-token windows with an
// 80-token overlap.
func DefaultConfig() Config {
	return Config{ChunkSize: 450, Overlap: 80}
}

// InvalidInputError reports an unusable chunking configuration.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "chunker: invalid input: " + e.Reason
}

// Chunker splits documents into overlapping token windows.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New validates the configuration and returns a Chunker.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("chunk_size must be positive, got %d", cfg.ChunkSize)}
	}
	if cfg.Overlap < 0 {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("overlap must be non-negative, got %d", cfg.Overlap)}
	}
	if cfg.Overlap >= cfg.ChunkSize {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("overlap %d must be smaller than chunk_size %d", cfg.Overlap, cfg.ChunkSize)}
	}
	return &Chunker{chunkSize: cfg.ChunkSize, overlap: cfg.Overlap}, nil
}

// Chunk strips markup from the document and emits token windows of
// chunkSize stepping by chunkSize-overlap. The final window may be short
// but always holds at least one token. Empty cleaned text yields an empty
// slice. Window i gets the id "{docID}_chunk_{i}" and the caller's metadata
// plus a "source" entry.
func (c *Chunker) Chunk(htmlSrc, docID string, metadata map[string]interface{}) []models.TextChunk {
	tokens := Tokenize(StripHTML(htmlSrc))
	if len(tokens) == 0 {
		return []models.TextChunk{}
	}

	step := c.chunkSize - c.overlap
	chunks := make([]models.TextChunk, 0, (len(tokens)+step-1)/step)

	for start := 0; start < len(tokens); start += step {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]

		md := make(map[string]interface{}, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md["source"] = docID

		sourceFile := docID
		if sf, ok := metadata["source_file"].(string); ok && sf != "" {
			sourceFile = sf
		}

		chunks = append(chunks, models.TextChunk{
			ChunkID:    fmt.Sprintf("%s_chunk_%d", docID, len(chunks)),
			Content:    strings.Join(window, " "),
			TokenCount: len(window),
			SourceFile: sourceFile,
			Metadata:   md,
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}

// Tokenize is the token definition used for token_count: whitespace-split
// words, no punctuation handling. Deterministic for a given input.
func Tokenize(text string) []string {
	return strings.Fields(text)
}
