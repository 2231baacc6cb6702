// Package manifest writes chunk files and the index that lists them.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// IndexFile is the manifest's file name inside the output directory.
const IndexFile = "chunks_index.json"

// Entry describes one written chunk.
type Entry struct {
	ChunkID         string `json:"chunk_id"`
	FilePath        string `json:"file_path"`
	Title           string `json:"title"`
	EstimatedTokens int    `json:"estimated_tokens"`
	SourceFile      string `json:"source_file"`
	ChunkingMethod  string `json:"chunking_method"`
}

// Index lists chunks in output order. It only grows: entries are appended
// per document and per-document indexes are merged into the batch index.
type Index struct {
	CreatedAt   time.Time `json:"created_at"`
	TotalChunks int       `json:"total_chunks"`
	TotalTokens int       `json:"total_tokens"`
	SourceFiles []string  `json:"source_files"`
	Chunks      []Entry   `json:"chunks"`
}

func NewIndex(now time.Time) *Index {
	return &Index{CreatedAt: now, SourceFiles: []string{}, Chunks: []Entry{}}
}

// Add appends e and updates the totals.
func (ix *Index) Add(e Entry) {
	ix.Chunks = append(ix.Chunks, e)
	ix.TotalChunks = len(ix.Chunks)
	ix.TotalTokens += e.EstimatedTokens
	ix.AddSource(e.SourceFile)
}

// AddSource lists a source document once, including one that produced no chunks.
func (ix *Index) AddSource(name string) {
	for _, s := range ix.SourceFiles {
		if s == name {
			return
		}
	}
	ix.SourceFiles = append(ix.SourceFiles, name)
}

// Merge appends every source and entry of other, keeping their order.
func (ix *Index) Merge(other *Index) {
	if other == nil {
		return
	}
	for _, s := range other.SourceFiles {
		ix.AddSource(s)
	}
	for _, e := range other.Chunks {
		ix.Add(e)
	}
}

// ChunkID names the seq-th chunk (1-based) of a document.
func ChunkID(stem string, seq int) string {
	return fmt.Sprintf("%s_chunk_%03d", stem, seq)
}

// WriteIndex stores ix as indented JSON.
func WriteIndex(path string, ix *Index) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chunk index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunk index: %w", err)
	}
	return nil
}

// ReadIndex loads an index written by WriteIndex.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk index: %w", err)
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("failed to decode chunk index: %w", err)
	}
	return &ix, nil
}
