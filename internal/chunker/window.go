package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

type phase int

const (
	phaseLoading   phase = iota // measure the remainder and open a window
	phaseCutting                // ask the segmenter, or force a cut
	phaseAdvancing              // move the cursor past the emitted piece
	phaseDone
)

// rollingWindow is the controller state for one oversized span.
type rollingWindow struct {
	text      string
	end       int
	title     string
	cursor    int
	windowEnd int
	part      int
	pending   piece
}

// roll cuts text[start:end] into pieces of at most MaxTokens each. Every
// step moves the cursor forward, so the loop ends even when every oracle
// answer is unusable.
func (c *Chunker) roll(ctx context.Context, log *slog.Logger, text string, start, end int, title string) ([]piece, error) {
	w := &rollingWindow{text: text, end: end, title: title, cursor: start, part: 1}
	var out []piece

	for st := phaseLoading; st != phaseDone; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch st {
		case phaseLoading:
			rest := text[w.cursor:end]
			if c.est.Count(rest) <= c.opts.MaxTokens {
				out = append(out, piece{start: w.cursor, end: end, title: w.partTitle(""), method: MethodLLM})
				st = phaseDone
				continue
			}
			w.windowEnd = w.cursor + c.est.Offset(rest, c.opts.WindowTokens)
			st = phaseCutting

		case phaseCutting:
			p, err := c.cut(ctx, log, w)
			if err != nil {
				return nil, err
			}
			w.pending = p
			st = phaseAdvancing

		case phaseAdvancing:
			out = append(out, w.pending)
			w.cursor = w.pending.end
			w.part++
			st = phaseLoading
		}
	}
	return out, nil
}

// cut asks the segmenter for a boundary inside the current window and
// falls back to a fixed-size cut when none is usable.
func (c *Chunker) cut(ctx context.Context, log *slog.Logger, w *rollingWindow) (piece, error) {
	window := w.text[w.cursor:w.windowEnd]
	reason := "no usable candidate"

	found, ok, err := c.seg.Cut(ctx, window)
	if err != nil {
		return piece{}, err
	}
	if ok {
		switch {
		case found.Offset <= 0 || found.Offset >= len(window):
			reason = fmt.Sprintf("cut %d outside window of %d bytes", found.Offset, len(window))
		case c.est.Count(window[:found.Offset]) > c.opts.MaxTokens:
			reason = "cut exceeds token budget"
		default:
			return piece{
				start:  w.cursor,
				end:    w.cursor + found.Offset,
				title:  w.partTitle(found.Title),
				method: MethodLLM,
			}, nil
		}
	}

	rest := w.text[w.cursor:w.end]
	at := w.cursor + c.est.Offset(rest, c.opts.MaxTokens)
	if at <= w.cursor {
		// A single rune can outweigh a tiny budget; take it whole.
		_, size := utf8.DecodeRuneInString(rest)
		at = w.cursor + size
	}
	log.Warn("forced cut", "offset", at, "reason", reason, "max_tokens", c.opts.MaxTokens)
	return piece{start: w.cursor, end: at, title: w.partTitle(""), method: MethodForced}, nil
}

func (w *rollingWindow) partTitle(suggested string) string {
	if suggested != "" {
		return suggested
	}
	return fmt.Sprintf("%s (Part %d)", w.title, w.part)
}
