package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"doc-chunker/internal/app"
	"doc-chunker/internal/chunker"
	"doc-chunker/internal/httputil"
	"doc-chunker/internal/queue"
	"doc-chunker/internal/source"
	"doc-chunker/internal/store"
)

type chunkTaskPayload struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
	MaxTokens  int    `json:"max_tokens,omitempty"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("chunk worker starting",
		"max_tokens", deps.Chunker.Options().MaxTokens,
		"token_profile", deps.Estimator.Profile(),
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(sigCtx)

	// Run queue worker
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeChunk, func(ctx context.Context, task queue.Task) error {
			var payload chunkTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleChunk(ctx, deps, payload)
		})
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(deps, "worker")
	})

	// Wait for either to fail
	if err := g.Wait(); err != nil {
		deps.Log.Error("chunk worker stopped", "err", err)
	}
}

func handleChunk(ctx context.Context, deps app.Deps, payload chunkTaskPayload) error {
	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return err
	}
	log := deps.Log.With("document_id", docID)

	ch, err := chunkerFor(deps, payload.MaxTokens)
	if err != nil {
		return markFailed(ctx, deps, log, docID, err)
	}
	chunks, err := ch.Chunk(ctx, chunker.Document{
		ID:    payload.Filename,
		Title: source.Stem(payload.Filename),
		Text:  payload.Content,
	})
	if err != nil {
		return markFailed(ctx, deps, log, docID, err)
	}

	storeChunks := make([]store.Chunk, 0, len(chunks))
	for _, c := range chunks {
		storeChunks = append(storeChunks, store.Chunk{
			Seq:         c.Seq,
			Total:       c.Total,
			Title:       c.Title,
			Method:      string(c.Method),
			StartOffset: c.Start,
			EndOffset:   c.End,
			TokenCount:  c.Tokens,
			Source:      c.Source,
			Text:        c.Content,
		})
	}
	if _, err := deps.Store.SaveChunks(ctx, docID, storeChunks); err != nil {
		return markFailed(ctx, deps, log, docID, fmt.Errorf("failed to save chunks: %w", err))
	}
	if err := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusReady); err != nil {
		return fmt.Errorf("failed to mark document ready: %w", err)
	}
	log.Info("document ready", "chunks", len(storeChunks))
	return nil
}

// chunkerFor returns the shared chunker, or one with a per-upload token budget.
func chunkerFor(deps app.Deps, maxTokens int) (*chunker.Chunker, error) {
	if maxTokens <= 0 || maxTokens == deps.Chunker.Options().MaxTokens {
		return deps.Chunker, nil
	}
	opts := app.ChunkerOptions(deps.Config)
	opts.MaxTokens = maxTokens
	return chunker.New(deps.Estimator, deps.Oracle, deps.Log, opts)
}

// markFailed records the failure and returns err so the queue can retry;
// a later successful attempt flips the status to ready.
func markFailed(ctx context.Context, deps app.Deps, log *slog.Logger, docID uuid.UUID, err error) error {
	if upErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed); upErr != nil {
		log.Error("failed to mark document failed", "err", upErr)
	}
	return err
}
