package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doc-chunker/internal/chunker"
)

// Writer stores chunk files under one directory.
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteDocument writes one file per chunk, named after stem, and returns
// the document's index.
func (w *Writer) WriteDocument(stem string, chunks []chunker.Chunk) (*Index, error) {
	ix := NewIndex(w.now())
	for _, c := range chunks {
		id := ChunkID(stem, c.Seq)
		path := filepath.Join(w.dir, id+".md")
		data, err := Render(c)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write chunk %s: %w", id, err)
		}
		ix.Add(Entry{
			ChunkID:         id,
			FilePath:        path,
			Title:           c.Title,
			EstimatedTokens: c.Tokens,
			SourceFile:      c.Source,
			ChunkingMethod:  string(c.Method),
		})
	}
	return ix, nil
}

// WriteIndex stores ix as the directory's manifest.
func (w *Writer) WriteIndex(ix *Index) (string, error) {
	path := filepath.Join(w.dir, IndexFile)
	return path, WriteIndex(path, ix)
}
