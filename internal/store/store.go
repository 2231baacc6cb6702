package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

var ErrDocumentNotFound = errors.New("document not found")

type Document struct {
	ID        uuid.UUID
	Filename  string
	Status    DocumentStatus
	CreatedAt time.Time
}

// Chunk is a persisted chunk. Offsets are byte positions in the extracted document text.
type Chunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Seq         int
	Total       int
	Title       string
	Method      string
	StartOffset int
	EndOffset   int
	TokenCount  int
	Source      string
	Text        string
}

// Store defines persistence contract; an external DB implementation can replace this.
type Store interface {
	CreateDocument(ctx context.Context, filename string) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error
	// SaveChunks replaces the document's chunks and returns them with IDs assigned.
	SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error)
	// ListChunks returns chunks grouped by document in the order of docIDs, then by Seq.
	ListChunks(ctx context.Context, docIDs []uuid.UUID) ([]Chunk, error)
}
