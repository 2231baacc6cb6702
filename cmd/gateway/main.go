package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doc-chunker/internal/app"
	"doc-chunker/internal/httputil"
	"doc-chunker/internal/manifest"
	"doc-chunker/internal/pipeline"
	"doc-chunker/internal/queue"
	"doc-chunker/internal/source"
	"doc-chunker/internal/store"
)

// chunkTaskPayload is the body of a chunk task; cmd/worker decodes the same shape.
type chunkTaskPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

type uploadOptions struct {
	MaxTokens int `validate:"omitempty,min=1,max=1000000"`
}

type chunksQuery struct {
	DocumentIDs []string `validate:"required,min=1,max=100,dive,uuid"`
}

type chunkResponse struct {
	ChunkID    string `json:"chunk_id"`
	Seq        int    `json:"seq"`
	Total      int    `json:"total"`
	Title      string `json:"title"`
	Method     string `json:"chunking_method"`
	Tokens     int    `json:"estimated_tokens"`
	StartByte  int    `json:"start_offset"`
	EndByte    int    `json:"end_offset"`
	SourceFile string `json:"source_file"`
	Content    string `json:"content"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/documents/upload", uploadHandler(deps))
	r.Get("/api/documents/{id}", documentHandler(deps))
	r.Get("/api/documents/{id}/chunks", documentChunksHandler(deps))
	r.Get("/api/chunks", chunkIndexHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Validate file size before parsing
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		if source.Classify(header.Filename) != source.KindDocument {
			msg := fmt.Sprintf("unsupported file type (allowed: %s)", strings.Join(source.Supported(), ", "))
			httputil.Fail(deps.Log, w, msg, nil, http.StatusBadRequest)
			return
		}

		opts, err := parseUploadOptions(r)
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text, err := source.Extract(header.Filename, content)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to extract text from file", err, http.StatusUnprocessableEntity)
			return
		}

		doc, err := deps.Store.CreateDocument(ctx, header.Filename)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		payload := chunkTaskPayload{
			DocumentID: doc.ID,
			Filename:   header.Filename,
			Content:    text,
			MaxTokens:  opts.MaxTokens,
		}

		body, err := json.Marshal(payload)
		if err != nil {
			fail(deps, ctx, w, "marshal payload failed", err, doc.ID, http.StatusInternalServerError, true)
			return
		}
		task := queue.Task{Type: queue.TaskTypeChunk, Payload: body}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			fail(deps, ctx, w, "failed to enqueue document; please retry", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id": doc.ID.String(),
			"status":      doc.Status,
		})
	}
}

func parseUploadOptions(r *http.Request) (uploadOptions, error) {
	var opts uploadOptions
	if raw := r.FormValue("max_tokens"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("max_tokens must be an integer")
		}
		opts.MaxTokens = n
	}
	if err := httputil.Validate(opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// fail is gateway-specific error handler that can mark documents as failed
func fail(deps app.Deps, ctx context.Context, w http.ResponseWriter, message string, err error, docID uuid.UUID, status int, markFailed bool) {
	log := deps.Log.With("document_id", docID)
	if markFailed && docID != uuid.Nil {
		if upErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
	}

	httputil.Fail(log, w, message, err, status)
}

// loadDocument resolves the {id} URL parameter and writes the error response itself.
func loadDocument(deps app.Deps, w http.ResponseWriter, r *http.Request) (store.Document, bool) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
		return store.Document{}, false
	}
	doc, err := deps.Store.GetDocument(r.Context(), docID)
	if errors.Is(err, store.ErrDocumentNotFound) {
		httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
		return store.Document{}, false
	}
	if err != nil {
		httputil.Fail(deps.Log, w, "failed to load document", err, http.StatusInternalServerError)
		return store.Document{}, false
	}
	return doc, true
}

func documentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadDocument(deps, w, r)
		if !ok {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"status":      doc.Status,
			"created_at":  doc.CreatedAt,
		})
	}
}

func documentChunksHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadDocument(deps, w, r)
		if !ok {
			return
		}
		if doc.Status != store.StatusReady {
			httputil.WriteJSON(w, http.StatusConflict, map[string]any{
				"document_id": doc.ID,
				"status":      doc.Status,
				"error":       "chunks not ready",
			})
			return
		}
		chunks, err := deps.Store.ListChunks(r.Context(), []uuid.UUID{doc.ID})
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list chunks", err, http.StatusInternalServerError)
			return
		}
		out := make([]chunkResponse, 0, len(chunks))
		for _, c := range chunks {
			out = append(out, chunkResponse{
				ChunkID:    manifest.ChunkID(source.Stem(c.Source), c.Seq),
				Seq:        c.Seq,
				Total:      c.Total,
				Title:      c.Title,
				Method:     c.Method,
				Tokens:     c.TokenCount,
				StartByte:  c.StartOffset,
				EndByte:    c.EndOffset,
				SourceFile: c.Source,
				Content:    c.Text,
			})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document_id": doc.ID,
			"chunks":      out,
		})
	}
}

// chunkIndexHandler merges the chunk lists of several documents into one
// manifest, in the order the ids were given.
func chunkIndexHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := chunksQuery{DocumentIDs: r.URL.Query()["document_id"]}
		if err := httputil.Validate(q); err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}
		ids := make([]uuid.UUID, 0, len(q.DocumentIDs))
		for _, s := range q.DocumentIDs {
			ids = append(ids, uuid.MustParse(s))
		}
		chunks, err := deps.Store.ListChunks(r.Context(), ids)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list chunks", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, indexFromChunks(chunks, time.Now().UTC()))
	}
}

// indexFromChunks builds a manifest from chunks grouped by document. Documents
// sharing a file name get distinct chunk ids and source entries.
func indexFromChunks(chunks []store.Chunk, now time.Time) *manifest.Index {
	ix := manifest.NewIndex(now)
	type docKey struct {
		stem, source string
	}
	keys := map[uuid.UUID]docKey{}
	stems := map[string]bool{}
	names := map[string]bool{}
	for _, c := range chunks {
		k, ok := keys[c.DocumentID]
		if !ok {
			k = docKey{stem: pipeline.UniqueStem(c.Source, stems), source: c.Source}
			if names[c.Source] {
				k.source = fmt.Sprintf("%s (%s)", c.Source, c.DocumentID)
			}
			names[c.Source] = true
			keys[c.DocumentID] = k
		}
		id := manifest.ChunkID(k.stem, c.Seq)
		ix.Add(manifest.Entry{
			ChunkID:         id,
			FilePath:        id + ".md",
			Title:           c.Title,
			EstimatedTokens: c.TokenCount,
			SourceFile:      k.source,
			ChunkingMethod:  c.Method,
		})
	}
	return ix
}
