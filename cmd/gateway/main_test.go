package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"doc-chunker/internal/app"
	"doc-chunker/internal/config"
	"doc-chunker/internal/manifest"
	"doc-chunker/internal/queue"
	"doc-chunker/internal/store"
)

func newTestDeps(st store.Store, q queue.Queue) app.Deps {
	return app.Deps{
		Store: st,
		Queue: q,
		Config: config.Config{
			MaxUploadSize: 1024 * 1024, // 1MB for tests
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestUploadHandler(t *testing.T) {
	validDocID := uuid.New()

	tests := []struct {
		name          string
		filename      string
		content       []byte
		fields        map[string]string
		setup         func(*store.MockStore, *queue.MockQueue)
		wantStatus    int
		checkResponse func(*testing.T, *http.Response)
	}{
		{
			name:     "successful upload",
			filename: "guide.md",
			content:  []byte("# Guide\n\nHello"),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "guide.md").
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
					var p chunkTaskPayload
					if err := json.Unmarshal(task.Payload, &p); err != nil {
						return false
					}
					return task.Type == queue.TaskTypeChunk && p.DocumentID == validDocID &&
						p.Content == "# Guide\n\nHello" && p.MaxTokens == 0
				})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
				assert.Equal(t, validDocID.String(), result["document_id"])
				assert.Equal(t, string(store.StatusProcessing), result["status"])
			},
		},
		{
			name:     "max_tokens is forwarded",
			filename: "notes.txt",
			content:  []byte("plain text"),
			fields:   map[string]string{"max_tokens": "2000"},
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "notes.txt").
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
					var p chunkTaskPayload
					return json.Unmarshal(task.Payload, &p) == nil && p.MaxTokens == 2000
				})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "zero max_tokens uses the configured budget",
			filename:   "notes.txt",
			content:    []byte("plain text"),
			fields:     map[string]string{"max_tokens": "0"},
			wantStatus: http.StatusAccepted,
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "notes.txt").
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:       "negative max_tokens",
			filename:   "notes.txt",
			content:    []byte("plain text"),
			fields:     map[string]string{"max_tokens": "-5"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non-numeric max_tokens",
			filename:   "notes.txt",
			content:    []byte("plain text"),
			fields:     map[string]string{"max_tokens": "lots"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "file too large",
			filename:   "large.txt",
			content:    make([]byte, 2*1024*1024), // 2MB
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported extension",
			filename:   "image.png",
			content:    []byte("content"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "passthrough json is not a document",
			filename:   "data.json",
			content:    []byte(`{}`),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unreadable text",
			filename:   "broken.txt",
			content:    []byte{0xff, 0xfe, 0x00},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:     "CreateDocument failure",
			filename: "test.txt",
			content:  []byte("content"),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "test.txt").
					Return(store.Document{}, errors.New("db error")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:     "Enqueue failure marks doc failed",
			filename: "test.txt",
			content:  []byte("content"),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "test.txt").
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("queue error")).Times(3)
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusFailed).Return(nil).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockQueue := new(queue.MockQueue)

			if tt.setup != nil {
				tt.setup(mockStore, mockQueue)
			}

			deps := newTestDeps(mockStore, mockQueue)
			handler := uploadHandler(deps)

			req, err := createMultipartRequest(tt.filename, tt.content, tt.fields)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			handler(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, resp.StatusCode, string(body))
			}

			if tt.checkResponse != nil {
				resp.Body = io.NopCloser(bytes.NewReader(w.Body.Bytes()))
				tt.checkResponse(t, resp)
			}

			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		mockStore := new(store.MockStore)
		mockQueue := new(queue.MockQueue)
		handler := uploadHandler(newTestDeps(mockStore, mockQueue))

		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", nil)
		req.Header.Set("Content-Type", "multipart/form-data")
		w := httptest.NewRecorder()

		handler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentHandler(t *testing.T) {
	docID := uuid.New()

	tests := []struct {
		name       string
		docID      string
		setup      func(*store.MockStore)
		wantStatus int
	}{
		{
			name:  "found",
			docID: docID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).
					Return(store.Document{ID: docID, Filename: "a.md", Status: store.StatusReady}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid UUID",
			docID:      "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "not found",
			docID: docID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).
					Return(store.Document{}, store.ErrDocumentNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:  "store error",
			docID: docID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).
					Return(store.Document{}, errors.New("db error")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			if tt.setup != nil {
				tt.setup(mockStore)
			}
			handler := documentHandler(newTestDeps(mockStore, new(queue.MockQueue)))

			w := httptest.NewRecorder()
			handler(w, withURLParam(httptest.NewRequest(http.MethodGet, "/api/documents/"+tt.docID, nil), "id", tt.docID))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			mockStore.AssertExpectations(t)
		})
	}
}

func TestDocumentChunksHandler(t *testing.T) {
	docID := uuid.New()
	chunks := []store.Chunk{
		{DocumentID: docID, Seq: 1, Total: 2, Title: "A", Method: "header", TokenCount: 3, Source: "guide.md", Text: "## A\nalpha\n\n", EndOffset: 12},
		{DocumentID: docID, Seq: 2, Total: 2, Title: "B", Method: "header", TokenCount: 4, Source: "guide.md", Text: "## B\nbeta gamma\n", StartOffset: 12, EndOffset: 28},
	}

	t.Run("ready", func(t *testing.T) {
		mockStore := new(store.MockStore)
		mockStore.On("GetDocument", mock.Anything, docID).
			Return(store.Document{ID: docID, Filename: "guide.md", Status: store.StatusReady}, nil).Once()
		mockStore.On("ListChunks", mock.Anything, []uuid.UUID{docID}).Return(chunks, nil).Once()

		w := httptest.NewRecorder()
		documentChunksHandler(newTestDeps(mockStore, nil))(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", docID.String()))

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Chunks []chunkResponse `json:"chunks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Chunks, 2)
		assert.Equal(t, "guide_chunk_002", body.Chunks[1].ChunkID)
		assert.Equal(t, "## B\nbeta gamma\n", body.Chunks[1].Content)
		mockStore.AssertExpectations(t)
	})

	t.Run("still processing", func(t *testing.T) {
		mockStore := new(store.MockStore)
		mockStore.On("GetDocument", mock.Anything, docID).
			Return(store.Document{ID: docID, Status: store.StatusProcessing}, nil).Once()

		w := httptest.NewRecorder()
		documentChunksHandler(newTestDeps(mockStore, nil))(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", docID.String()))

		assert.Equal(t, http.StatusConflict, w.Code)
		mockStore.AssertNotCalled(t, "ListChunks", mock.Anything, mock.Anything)
	})
}

func TestChunkIndexHandler(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	t.Run("merges documents in request order", func(t *testing.T) {
		mockStore := new(store.MockStore)
		mockStore.On("ListChunks", mock.Anything, []uuid.UUID{b, a}).Return([]store.Chunk{
			{DocumentID: b, Seq: 1, Total: 1, Title: "B", Method: "single", TokenCount: 5, Source: "b.txt"},
			{DocumentID: a, Seq: 1, Total: 1, Title: "A", Method: "header", TokenCount: 7, Source: "a.md"},
		}, nil).Once()

		url := fmt.Sprintf("/api/chunks?document_id=%s&document_id=%s", b, a)
		w := httptest.NewRecorder()
		chunkIndexHandler(newTestDeps(mockStore, nil))(w, httptest.NewRequest(http.MethodGet, url, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var ix manifest.Index
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ix))
		assert.Equal(t, 2, ix.TotalChunks)
		assert.Equal(t, 12, ix.TotalTokens)
		assert.Equal(t, []string{"b.txt", "a.md"}, ix.SourceFiles)
		assert.Equal(t, "b_chunk_001", ix.Chunks[0].ChunkID)
		mockStore.AssertExpectations(t)
	})

	for _, url := range []string{"/api/chunks", "/api/chunks?document_id=nope"} {
		t.Run("rejects "+url, func(t *testing.T) {
			mockStore := new(store.MockStore)
			w := httptest.NewRecorder()
			chunkIndexHandler(newTestDeps(mockStore, nil))(w, httptest.NewRequest(http.MethodGet, url, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			mockStore.AssertNotCalled(t, "ListChunks", mock.Anything, mock.Anything)
		})
	}
}

func TestIndexFromChunks(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ix := indexFromChunks([]store.Chunk{{Seq: 12, Source: "report.pdf", TokenCount: 9, Method: "llm", Title: "Part"}}, now)

	assert.Equal(t, now, ix.CreatedAt)
	require.Len(t, ix.Chunks, 1)
	assert.Equal(t, "report_chunk_012", ix.Chunks[0].ChunkID)
	assert.Equal(t, "report_chunk_012.md", ix.Chunks[0].FilePath)
	assert.Equal(t, "llm", ix.Chunks[0].ChunkingMethod)
}

func TestIndexFromChunksSameFileName(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	ix := indexFromChunks([]store.Chunk{
		{DocumentID: first, Seq: 1, Total: 2, Source: "report.md", TokenCount: 3},
		{DocumentID: first, Seq: 2, Total: 2, Source: "report.md", TokenCount: 4},
		{DocumentID: second, Seq: 1, Total: 1, Source: "report.md", TokenCount: 5},
	}, time.Now())

	require.Len(t, ix.Chunks, 3)
	assert.Equal(t, "report_chunk_001", ix.Chunks[0].ChunkID)
	assert.Equal(t, "report_chunk_002", ix.Chunks[1].ChunkID)
	assert.Equal(t, "report_md_chunk_001", ix.Chunks[2].ChunkID)
	assert.Equal(t, "report_md_chunk_001.md", ix.Chunks[2].FilePath)

	seen := map[string]bool{}
	for _, e := range ix.Chunks {
		assert.False(t, seen[e.ChunkID], "duplicate chunk id %s", e.ChunkID)
		seen[e.ChunkID] = true
	}
	assert.Equal(t, []string{"report.md", "report.md (" + second.String() + ")"}, ix.SourceFiles)
	assert.Equal(t, 12, ix.TotalTokens)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func createMultipartRequest(filename string, content []byte, fields map[string]string) (*http.Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
