package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations from the gateway and workers.
	const lockID = 727274001

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			total INT NOT NULL,
			title TEXT NOT NULL,
			method TEXT NOT NULL,
			start_offset INT NOT NULL,
			end_offset INT NOT NULL,
			token_count INT NOT NULL,
			source TEXT NOT NULL,
			text TEXT NOT NULL,
			UNIQUE (document_id, seq)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, filename string) (Document, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents(id, filename, status) VALUES($1,$2,$3)`,
		id, filename, StatusProcessing)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Filename: filename, Status: StatusProcessing, CreatedAt: time.Now()}, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	doc := Document{ID: id}
	row := s.db.QueryRowContext(ctx, `SELECT filename, status, created_at FROM documents WHERE id=$1`, id)
	if err := row.Scan(&doc.Filename, &doc.Status, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// SaveChunks writes all chunks in one statement by unnesting parallel arrays.
func (s *PostgresStore) SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id=$1`, docID); err != nil {
		return nil, fmt.Errorf("failed to clear chunks for doc %s: %w", docID, err)
	}

	out := make([]Chunk, 0, len(chunks))
	cols := newChunkColumns(len(chunks))
	for _, c := range chunks {
		c.ID = uuid.New()
		c.DocumentID = docID
		cols.add(c)
		out = append(out, c)
	}

	if len(chunks) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, seq, total, title, method, start_offset, end_offset, token_count, source, text)
			SELECT u.id::uuid, $1, u.seq, u.total, u.title, u.method, u.start_offset, u.end_offset, u.token_count, u.source, u.text
			FROM unnest($2::text[], $3::int[], $4::int[], $5::text[], $6::text[], $7::int[], $8::int[], $9::int[], $10::text[], $11::text[])
				AS u(id, seq, total, title, method, start_offset, end_offset, token_count, source, text)`,
			docID,
			pq.Array(cols.ids), pq.Array(cols.seqs), pq.Array(cols.totals), pq.Array(cols.titles), pq.Array(cols.methods),
			pq.Array(cols.starts), pq.Array(cols.ends), pq.Array(cols.tokens), pq.Array(cols.sources), pq.Array(cols.texts),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunks for doc %s: %w", docID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, docIDs []uuid.UUID) ([]Chunk, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, seq, total, title, method, start_offset, end_offset, token_count, source, text
		FROM chunks
		WHERE document_id = ANY($1::uuid[])
		ORDER BY array_position($1::uuid[], document_id), seq`,
		pq.Array(uuidStrings(docIDs)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Total, &c.Title, &c.Method,
			&c.StartOffset, &c.EndOffset, &c.TokenCount, &c.Source, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// chunkColumns holds chunk fields as parallel arrays for unnest.
type chunkColumns struct {
	ids, titles, methods, sources, texts []string
	seqs, totals, starts, ends, tokens   []int64
}

func newChunkColumns(n int) *chunkColumns {
	return &chunkColumns{
		ids:     make([]string, 0, n),
		titles:  make([]string, 0, n),
		methods: make([]string, 0, n),
		sources: make([]string, 0, n),
		texts:   make([]string, 0, n),
		seqs:    make([]int64, 0, n),
		totals:  make([]int64, 0, n),
		starts:  make([]int64, 0, n),
		ends:    make([]int64, 0, n),
		tokens:  make([]int64, 0, n),
	}
}

func (c *chunkColumns) add(ch Chunk) {
	c.ids = append(c.ids, ch.ID.String())
	c.titles = append(c.titles, ch.Title)
	c.methods = append(c.methods, ch.Method)
	c.sources = append(c.sources, ch.Source)
	c.texts = append(c.texts, ch.Text)
	c.seqs = append(c.seqs, int64(ch.Seq))
	c.totals = append(c.totals, int64(ch.Total))
	c.starts = append(c.starts, int64(ch.StartOffset))
	c.ends = append(c.ends, int64(ch.EndOffset))
	c.tokens = append(c.tokens, int64(ch.TokenCount))
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
