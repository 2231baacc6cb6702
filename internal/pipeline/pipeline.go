// Package pipeline chunks every document in a directory and writes the
// chunk files plus one merged manifest.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"doc-chunker/internal/chunker"
	"doc-chunker/internal/manifest"
	"doc-chunker/internal/source"
)

// PassthroughDir holds copied JSON files inside the output directory.
const PassthroughDir = "passthrough"

// Pipeline runs a Chunker over many documents with bounded concurrency.
type Pipeline struct {
	chunker *chunker.Chunker
	log     *slog.Logger
	workers int
}

func New(c *chunker.Chunker, log *slog.Logger, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{chunker: c, log: log, workers: workers}
}

// Failure records a document that could not be chunked.
type Failure struct {
	Source string
	Err    error
}

// Result summarizes a batch run.
type Result struct {
	Index       *manifest.Index
	IndexPath   string
	Failures    []Failure
	Passthrough []string
	Skipped     []string
	Duration    time.Duration
}

type job struct {
	path string
	stem string
}

type outcome struct {
	index *manifest.Index
	err   error
}

// Run chunks every supported file in inputDir. A failing document is
// recorded in Result.Failures and does not stop the others; only context
// cancellation or an unusable output directory abort the batch.
func (p *Pipeline) Run(ctx context.Context, inputDir, outputDir string) (*Result, error) {
	start := time.Now()
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory: %w", err)
	}
	w, err := manifest.NewWriter(outputDir)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var jobs []job
	stems := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(inputDir, e.Name())
		switch source.Classify(e.Name()) {
		case source.KindDocument:
			jobs = append(jobs, job{path: path, stem: UniqueStem(e.Name(), stems)})
		case source.KindPassthrough:
			if err := copyFile(path, filepath.Join(outputDir, PassthroughDir, e.Name())); err != nil {
				res.Failures = append(res.Failures, Failure{Source: e.Name(), Err: err})
				continue
			}
			res.Passthrough = append(res.Passthrough, e.Name())
		default:
			res.Skipped = append(res.Skipped, e.Name())
		}
	}
	p.log.Info("found files", "documents", len(jobs), "passthrough", len(res.Passthrough), "skipped", len(res.Skipped))

	outcomes := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, j := range jobs {
		g.Go(func() error {
			ix, err := p.chunkFile(gctx, j.path, j.stem, w)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Error("document failed", "document", filepath.Base(j.path), "err", err)
			}
			outcomes[i] = outcome{index: ix, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in input order so the manifest does not depend on scheduling.
	batch := manifest.NewIndex(start)
	for i, o := range outcomes {
		if o.err != nil {
			res.Failures = append(res.Failures, Failure{Source: filepath.Base(jobs[i].path), Err: o.err})
			continue
		}
		batch.Merge(o.index)
	}
	res.Index = batch
	if res.IndexPath, err = w.WriteIndex(batch); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	p.log.Info("chunking pipeline complete",
		"total_chunks", batch.TotalChunks,
		"total_tokens", batch.TotalTokens,
		"source_files", len(batch.SourceFiles),
		"failures", len(res.Failures),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ChunkFile chunks one file into w and returns its index and chunks.
func (p *Pipeline) ChunkFile(ctx context.Context, path string, w *manifest.Writer) (*manifest.Index, []chunker.Chunk, error) {
	chunks, err := p.chunkPath(ctx, path, source.Stem(path))
	if err != nil {
		return nil, nil, err
	}
	ix, err := w.WriteDocument(source.Stem(path), chunks)
	if err != nil {
		return nil, nil, err
	}
	ix.AddSource(filepath.Base(path))
	return ix, chunks, nil
}

func (p *Pipeline) chunkFile(ctx context.Context, path, stem string, w *manifest.Writer) (*manifest.Index, error) {
	chunks, err := p.chunkPath(ctx, path, stem)
	if err != nil {
		return nil, err
	}
	ix, err := w.WriteDocument(stem, chunks)
	if err != nil {
		return nil, err
	}
	// Empty documents have no chunks but still belong in source_files.
	ix.AddSource(filepath.Base(path))
	return ix, nil
}

func (p *Pipeline) chunkPath(ctx context.Context, path, stem string) ([]chunker.Chunk, error) {
	p.log.Info("processing document", "document", filepath.Base(path))
	text, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chunks, err := p.chunker.Chunk(ctx, chunker.Document{
		ID:    filepath.Base(path),
		Title: stem,
		Text:  text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", filepath.Base(path), err)
	}
	return chunks, nil
}

// UniqueStem keeps chunk ids of same-named documents apart, e.g. a.md and
// a.txt. seen holds the stems handed out so far and is updated.
func UniqueStem(name string, seen map[string]bool) string {
	stem := source.Stem(name)
	if seen[stem] {
		stem = stem + "_" + strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
	for base, n := stem, 2; seen[stem]; n++ {
		stem = fmt.Sprintf("%s_%d", base, n)
	}
	seen[stem] = true
	return stem
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create passthrough directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
