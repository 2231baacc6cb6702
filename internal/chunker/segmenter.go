package chunker

import (
	"context"
	"log/slog"

	"doc-chunker/internal/fuzzy"
	"doc-chunker/internal/oracle"
)

// Cut is a resolved boundary: a byte offset inside the window.
type Cut struct {
	Offset int
	Title  string
	Rank   int // position of the winning candidate in the oracle's list
}

// Segmenter turns oracle candidates into a concrete cut.
type Segmenter struct {
	oracle        oracle.Oracle
	locator       fuzzy.Locator
	candidates    int
	contextTokens int
	log           *slog.Logger
}

// Cut returns the first candidate, in the oracle's order, that the locator
// resolves strictly inside window. ok is false when nothing resolves. An
// oracle error is returned only when ctx has ended; otherwise it counts as
// no answer.
func (s *Segmenter) Cut(ctx context.Context, window string) (Cut, bool, error) {
	resp, err := s.oracle.SuggestCuts(ctx, oracle.Request{
		Window:        window,
		Candidates:    s.candidates,
		ContextTokens: s.contextTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Cut{}, false, ctxErr
		}
		s.log.Warn("oracle failed, treating as no answer", "err", err)
		return Cut{}, false, nil
	}
	if resp.Kind == oracle.Empty {
		return Cut{}, false, nil
	}

	for i, cand := range resp.Candidates {
		off, ok := s.locator.Locate(window, cand.Before, cand.After)
		if !ok || off <= 0 || off >= len(window) {
			s.log.Debug("candidate did not resolve", "rank", i, "kind", resp.Kind.String())
			continue
		}
		return Cut{Offset: off, Title: cand.Title, Rank: i}, true, nil
	}
	return Cut{}, false, nil
}
