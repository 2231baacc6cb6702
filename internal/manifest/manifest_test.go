package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chunker/internal/chunker"
)

func TestChunkID(t *testing.T) {
	tests := []struct {
		stem string
		seq  int
		want string
	}{
		{"guide", 1, "guide_chunk_001"},
		{"guide", 42, "guide_chunk_042"},
		{"big", 1234, "big_chunk_1234"},
	}
	for _, tt := range tests {
		if got := ChunkID(tt.stem, tt.seq); got != tt.want {
			t.Errorf("ChunkID(%q, %d) = %q, want %q", tt.stem, tt.seq, got, tt.want)
		}
	}
}

func TestIndexAddAndMerge(t *testing.T) {
	a := NewIndex(time.Unix(0, 0))
	a.Add(Entry{ChunkID: "a_chunk_001", SourceFile: "a.md", EstimatedTokens: 10})
	a.Add(Entry{ChunkID: "a_chunk_002", SourceFile: "a.md", EstimatedTokens: 5})

	b := NewIndex(time.Unix(0, 0))
	b.Add(Entry{ChunkID: "b_chunk_001", SourceFile: "b.md", EstimatedTokens: 7})

	batch := NewIndex(time.Unix(0, 0))
	batch.Merge(a)
	batch.Merge(b)
	batch.Merge(nil)

	assert.Equal(t, 3, batch.TotalChunks)
	assert.Equal(t, 22, batch.TotalTokens)
	assert.Equal(t, []string{"a.md", "b.md"}, batch.SourceFiles)
	assert.Equal(t, "b_chunk_001", batch.Chunks[2].ChunkID)
}

func TestIndexMergeKeepsSourcesWithoutChunks(t *testing.T) {
	empty := NewIndex(time.Unix(0, 0))
	empty.AddSource("empty.md")
	empty.AddSource("empty.md")

	full := NewIndex(time.Unix(0, 0))
	full.Add(Entry{ChunkID: "z_chunk_001", SourceFile: "z.md", EstimatedTokens: 2})

	batch := NewIndex(time.Unix(0, 0))
	batch.Merge(empty)
	batch.Merge(full)

	assert.Equal(t, []string{"empty.md", "z.md"}, batch.SourceFiles)
	assert.Equal(t, 1, batch.TotalChunks)
	assert.Equal(t, 2, batch.TotalTokens)
}

func TestRenderAndParseChunkFile(t *testing.T) {
	c := chunker.Chunk{
		Seq:     2,
		Total:   5,
		Title:   "Setup: \"quick\" start",
		Content: "\n## Setup\n\n---\nbody with a rule\n",
		Tokens:  9,
		Method:  chunker.MethodLLM,
		Source:  "guide.md",
	}

	data, err := Render(c)
	require.NoError(t, err)

	fm, content, err := ParseChunkFile(data)
	require.NoError(t, err)
	assert.Equal(t, c.Content, content, "content must survive byte for byte")
	assert.Equal(t, Frontmatter{
		Title:  c.Title,
		Source: "guide.md",
		Chunk:  2,
		Total:  5,
		Tokens: 9,
		Method: "llm",
	}, fm)
}

func TestParseChunkFileWithoutFrontmatter(t *testing.T) {
	_, _, err := ParseChunkFile([]byte("# plain markdown\n"))
	assert.ErrorIs(t, err, ErrNoFrontmatter)
}

func TestWriterWritesDocumentAndIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(dir)
	require.NoError(t, err)

	chunks := []chunker.Chunk{
		{Seq: 1, Total: 2, Title: "Intro", Content: "# Intro\n", Tokens: 2, Method: chunker.MethodHeader, Source: "guide.md"},
		{Seq: 2, Total: 2, Title: "Body", Content: "# Body\ntext\n", Tokens: 3, Method: chunker.MethodHeader, Source: "guide.md"},
	}
	ix, err := w.WriteDocument("guide", chunks)
	require.NoError(t, err)
	require.Len(t, ix.Chunks, 2)
	assert.Equal(t, filepath.Join(dir, "guide_chunk_002.md"), ix.Chunks[1].FilePath)
	assert.Equal(t, 5, ix.TotalTokens)

	data, err := os.ReadFile(ix.Chunks[0].FilePath)
	require.NoError(t, err)
	_, content, err := ParseChunkFile(data)
	require.NoError(t, err)
	assert.Equal(t, "# Intro\n", content)

	path, err := w.WriteIndex(ix)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, IndexFile), path)

	back, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, ix.TotalChunks, back.TotalChunks)
	assert.Equal(t, ix.Chunks, back.Chunks)
}
