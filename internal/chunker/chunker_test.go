package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenDoc(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return "<html><body><p>" + strings.Join(words, " ") + "</p></body></html>"
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero chunk size", Config{ChunkSize: 0, Overlap: 0}},
		{"negative chunk size", Config{ChunkSize: -1, Overlap: 0}},
		{"negative overlap", Config{ChunkSize: 10, Overlap: -1}},
		{"overlap equals chunk size", Config{ChunkSize: 100, Overlap: 100}},
		{"overlap exceeds chunk size", Config{ChunkSize: 100, Overlap: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			var invalid *InvalidInputError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestChunkWindowing(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	chunks := c.Chunk(tokenDoc(1000), "doc", nil)
	require.Len(t, chunks, 3)

	assert.Equal(t, "doc_chunk_0", chunks[0].ChunkID)
	assert.Equal(t, "doc_chunk_1", chunks[1].ChunkID)
	assert.Equal(t, "doc_chunk_2", chunks[2].ChunkID)
	assert.Equal(t, 450, chunks[0].TokenCount)
	assert.Equal(t, 450, chunks[1].TokenCount)
	assert.Equal(t, 260, chunks[2].TokenCount)

	for _, ch := range chunks {
		assert.Equal(t, ch.TokenCount, len(Tokenize(ch.Content)))
		assert.Equal(t, "doc", ch.Metadata["source"])
	}

	// Consecutive full windows share exactly the overlap.
	first := Tokenize(chunks[0].Content)
	second := Tokenize(chunks[1].Content)
	assert.Equal(t, first[len(first)-80:], second[:80])
}

func TestChunkDeterministic(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	doc := tokenDoc(1000)
	a := c.Chunk(doc, "doc", map[string]interface{}{"lang": "en"})
	b := c.Chunk(doc, "doc", map[string]interface{}{"lang": "en"})
	assert.Equal(t, a, b)
}

func TestChunkBoundaries(t *testing.T) {
	c, err := New(Config{ChunkSize: 10, Overlap: 3})
	require.NoError(t, err)

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, c.Chunk("", "doc", nil))
		assert.Empty(t, c.Chunk("<p>   </p>", "doc", nil))
	})

	t.Run("short text yields one chunk", func(t *testing.T) {
		chunks := c.Chunk("<p>one two three</p>", "doc", nil)
		require.Len(t, chunks, 1)
		assert.Equal(t, 3, chunks[0].TokenCount)
		assert.Equal(t, "one two three", chunks[0].Content)
	})

	t.Run("exactly chunk size yields one chunk", func(t *testing.T) {
		chunks := c.Chunk(tokenDoc(10), "doc", nil)
		require.Len(t, chunks, 1)
		assert.Equal(t, 10, chunks[0].TokenCount)
	})

	t.Run("last window has at least one token", func(t *testing.T) {
		chunks := c.Chunk(tokenDoc(25), "doc", nil)
		for _, ch := range chunks {
			assert.GreaterOrEqual(t, ch.TokenCount, 1)
			assert.LessOrEqual(t, ch.TokenCount, 10)
		}
	})
}

func TestChunkMetadata(t *testing.T) {
	c, err := New(Config{ChunkSize: 5, Overlap: 1})
	require.NoError(t, err)

	meta := map[string]interface{}{"title": "Example", "source_file": "pages/example.html"}
	chunks := c.Chunk(tokenDoc(12), "example", meta)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.Equal(t, "Example", ch.Metadata["title"])
		assert.Equal(t, "example", ch.Metadata["source"])
		assert.Equal(t, "pages/example.html", ch.SourceFile)
	}
	// Caller's map is copied, not mutated.
	_, mutated := meta["source"]
	assert.False(t, mutated)
}

func TestStripHTML(t *testing.T) {
	src := `<html><head><title>Ignored</title><style>p{color:red}</style></head>
<body><script>var x = 1;</script><p>Alpha &amp; Beta</p>
<table><tr><td>c1</td><td>c2</td></tr></table><noscript>nope</noscript></body></html>`

	text := StripHTML(src)
	tokens := Tokenize(text)

	assert.Equal(t, []string{"Alpha", "&", "Beta", "c1", "c2"}, tokens)
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "Ignored")
	assert.NotContains(t, text, "nope")
}
