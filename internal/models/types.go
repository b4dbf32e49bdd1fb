package models

import "time"

// TextChunk is one overlapping token window cut from a source document.
// Chunks are immutable after creation; the chunk ID is stable across runs
// for a given document and chunking configuration.
type TextChunk struct {
	ChunkID    string                 `json:"chunk_id"`
	Content    string                 `json:"content"`
	TokenCount int                    `json:"token_count"`
	SourceFile string                 `json:"source_file"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Vector is the embedding produced for a single chunk. Embedding length
// must equal the configured model dimension; producers reject anything else.
type Vector struct {
	ChunkID   string    `json:"chunk_id"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// Restrict is a namespace filter attached to an index record, in the shape
// the managed ANN ingestion format expects.
type Restrict struct {
	Namespace string   `json:"namespace"`
	AllowList []string `json:"allow_list"`
}

// IndexRecord is the on-disk form consumed by the external ANN index
// builder: one JSON object per line in the ingestion file.
type IndexRecord struct {
	ID        string                 `json:"id"`
	Embedding []float32              `json:"embedding"`
	Restricts []Restrict             `json:"restricts"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// SearchMatch is a single ranked result from a similarity lookup.
// Score is in [0,1] with 1.0 the best; Content is empty unless a later
// stage hydrates it.
type SearchMatch struct {
	ChunkID  string                 `json:"chunk_id"`
	Score    float64                `json:"score"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}
