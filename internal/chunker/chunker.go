// Package chunker splits long markdown documents into ordered chunks that
// each fit a token budget. Header structure is used first; spans that are
// still too large go through an oracle-assisted rolling window.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"doc-chunker/internal/fuzzy"
	"doc-chunker/internal/oracle"
	"doc-chunker/internal/sections"
	"doc-chunker/internal/tokens"
)

// Method records how a chunk boundary was chosen.
type Method string

const (
	MethodSingle Method = "single" // whole document, no header structure
	MethodHeader Method = "header" // a header section that fits
	MethodLLM    Method = "llm"    // oracle-proposed cut, or the remainder after one
	MethodForced Method = "forced" // fixed-size cut after the oracle gave nothing usable
)

var ErrInvalidOptions = errors.New("invalid chunking options")

const (
	DefaultMaxTokens     = 100000
	DefaultContextTokens = 50
	DefaultCandidates    = 3
)

// Document is one unit of input text.
type Document struct {
	ID    string // source identifier, usually the file name
	Title string // fallback title, usually the file stem
	Text  string
}

// Chunk is a contiguous slice of a document. Concatenating a document's
// chunks in Seq order reproduces its text byte for byte.
type Chunk struct {
	Seq     int // 1-based
	Total   int
	Title   string
	Content string
	Tokens  int
	Method  Method
	Source  string
	Start   int
	End     int
}

// Options bound the chunking run.
type Options struct {
	MaxTokens     int // B: hard upper bound per chunk, forced cuts excepted
	WindowTokens  int // W: size of the window shown to the oracle; clamped to B
	ContextTokens int // k: fragment size requested from the oracle
	Candidates    int // K: cut points requested per window
}

func (o Options) withDefaults() Options {
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.WindowTokens == 0 || o.WindowTokens > o.MaxTokens {
		o.WindowTokens = o.MaxTokens
	}
	if o.ContextTokens == 0 {
		o.ContextTokens = DefaultContextTokens
	}
	if o.Candidates == 0 {
		o.Candidates = DefaultCandidates
	}
	return o
}

func (o Options) validate() error {
	switch {
	case o.MaxTokens < 1:
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidOptions, o.MaxTokens)
	case o.WindowTokens < 1:
		return fmt.Errorf("%w: window tokens must be positive, got %d", ErrInvalidOptions, o.WindowTokens)
	case o.ContextTokens < 1:
		return fmt.Errorf("%w: context tokens must be positive, got %d", ErrInvalidOptions, o.ContextTokens)
	case o.Candidates < 1:
		return fmt.Errorf("%w: candidates must be positive, got %d", ErrInvalidOptions, o.Candidates)
	}
	return nil
}

// Chunker is safe for concurrent use if its Estimator and Oracle are.
type Chunker struct {
	opts Options
	est  tokens.Estimator
	seg  cutFinder
	log  *slog.Logger
}

// cutFinder proposes a boundary inside a window.
type cutFinder interface {
	Cut(ctx context.Context, window string) (Cut, bool, error)
}

// New validates opts and builds a Chunker. A nil oracle behaves like oracle.None.
func New(est tokens.Estimator, orc oracle.Oracle, log *slog.Logger, opts Options) (*Chunker, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if est == nil {
		return nil, fmt.Errorf("%w: token estimator required", ErrInvalidOptions)
	}
	if orc == nil {
		orc = oracle.None
	}
	return &Chunker{
		opts: opts,
		est:  est,
		seg: &Segmenter{
			oracle:        orc,
			locator:       fuzzy.Locator{MinSimilarity: fuzzy.DefaultMinSimilarity},
			candidates:    opts.Candidates,
			contextTokens: opts.ContextTokens,
			log:           log,
		},
		log: log,
	}, nil
}

// Options returns the effective options after defaults.
func (c *Chunker) Options() Options {
	return c.opts
}

// Estimator returns the token estimator used for budgeting.
func (c *Chunker) Estimator() tokens.Estimator {
	return c.est
}

// piece is a planned chunk before assembly.
type piece struct {
	start, end int
	title      string
	method     Method
}

// Chunk splits doc into ordered chunks. Empty text yields no chunks.
// The only error sources are ctx cancellation and an oracle failing
// because ctx ended; any other oracle trouble degrades to forced cuts.
func (c *Chunker) Chunk(ctx context.Context, doc Document) ([]Chunk, error) {
	if doc.Text == "" {
		return nil, nil
	}
	log := c.log.With("document", doc.ID)
	roots := sections.Build(doc.Text, c.est)

	var pieces []piece
	if total := c.est.Count(doc.Text); total <= c.opts.MaxTokens {
		method := MethodSingle
		if hasHeaders(roots) {
			method = MethodHeader
		}
		pieces = append(pieces, piece{start: 0, end: len(doc.Text), title: doc.Title, method: method})
	} else {
		log.Debug("document exceeds budget, decomposing", "tokens", total, "max_tokens", c.opts.MaxTokens)
		d := newDecomposer(c, doc, log, hasHeaders(roots))
		for _, root := range roots {
			if err := d.section(ctx, root); err != nil {
				return nil, err
			}
		}
		pieces = d.out
	}

	chunks := c.assemble(doc, pieces)
	log.Info("document chunked", "chunks", len(chunks))
	return chunks, nil
}

// assemble numbers pieces and measures their tokens.
func (c *Chunker) assemble(doc Document, pieces []piece) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		content := doc.Text[p.start:p.end]
		chunks = append(chunks, Chunk{
			Seq:     i + 1,
			Total:   len(pieces),
			Title:   p.title,
			Content: content,
			Tokens:  c.est.Count(content),
			Method:  p.method,
			Source:  doc.ID,
			Start:   p.start,
			End:     p.end,
		})
	}
	return chunks
}

func hasHeaders(roots []*sections.Section) bool {
	for _, r := range roots {
		if r.HasHeader() {
			return true
		}
	}
	return false
}
