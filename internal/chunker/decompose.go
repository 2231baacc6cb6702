package chunker

import (
	"context"
	"log/slog"

	"doc-chunker/internal/sections"
)

// decomposer walks the section tree in document order, emitting every
// section that fits whole and handing oversized leaves to the rolling window.
type decomposer struct {
	c      *Chunker
	doc    Document
	log    *slog.Logger
	headed bool
	out    []piece

	// carry is the start of header lines with no body of their own, waiting
	// to be prefixed to the next piece. -1 when nothing is pending.
	carry      int
	carryTitle string
}

func newDecomposer(c *Chunker, doc Document, log *slog.Logger, headed bool) *decomposer {
	return &decomposer{c: c, doc: doc, log: log, headed: headed, carry: -1}
}

func (d *decomposer) section(ctx context.Context, s *sections.Section) error {
	budget := d.c.opts.MaxTokens
	title := d.title(s)

	if s.Tokens <= budget {
		return d.emit(ctx, piece{start: s.Start, end: s.End, title: title, method: MethodHeader})
	}
	if len(s.Children) == 0 {
		return d.roll(ctx, s.Start, s.End, title)
	}

	// Own content first, then children.
	intro := title + " (Introduction)"
	switch {
	case s.HeaderOnly(d.doc.Text):
		if d.carry < 0 {
			d.carry, d.carryTitle = s.Start, intro
		}
	case s.OwnTokens <= budget:
		if err := d.emit(ctx, piece{start: s.Start, end: s.DirectEnd(), title: intro, method: MethodHeader}); err != nil {
			return err
		}
	default:
		if err := d.roll(ctx, s.Start, s.DirectEnd(), intro); err != nil {
			return err
		}
	}
	for _, child := range s.Children {
		if err := d.section(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// emit appends p, absorbing pending header lines when the result still fits.
// Pending header lines that cannot join p become their own piece, rolled
// when they alone exceed MaxTokens.
func (d *decomposer) emit(ctx context.Context, p piece) error {
	if d.carry >= 0 {
		budget := d.c.opts.MaxTokens
		carry, title := d.carry, d.carryTitle
		d.carry = -1
		switch {
		case d.c.est.Count(d.doc.Text[carry:p.end]) <= budget:
			p.start = carry
		case d.c.est.Count(d.doc.Text[carry:p.start]) <= budget:
			d.out = append(d.out, piece{start: carry, end: p.start, title: title, method: MethodHeader})
		default:
			pieces, err := d.c.roll(ctx, d.log, d.doc.Text, carry, p.start, title)
			if err != nil {
				return err
			}
			d.out = append(d.out, pieces...)
		}
	}
	d.out = append(d.out, p)
	return nil
}

func (d *decomposer) roll(ctx context.Context, start, end int, title string) error {
	if d.carry >= 0 {
		start, d.carry = d.carry, -1
	}
	pieces, err := d.c.roll(ctx, d.log, d.doc.Text, start, end, title)
	if err != nil {
		return err
	}
	d.out = append(d.out, pieces...)
	return nil
}

func (d *decomposer) title(s *sections.Section) string {
	if s.HasHeader() && s.Title != "" {
		return s.Title
	}
	if s.Level == 0 && d.headed {
		// Text ahead of the first header.
		return d.doc.Title + " (Introduction)"
	}
	return d.doc.Title
}
