// Package sections builds the header tree of a markdown document.
package sections

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"doc-chunker/internal/tokens"
)

// Section is a header-delimited span of a document. Sections are immutable once built.
//
// [Start, End) covers the section's header line, its own body and every descendant.
// Level 0 marks text with no header of its own (a preamble, or a document with no headers).
type Section struct {
	Title     string
	Level     int
	Start     int
	BodyStart int // first byte after the header line; Start for level 0
	End       int
	Tokens    int // whole subtree
	OwnTokens int // header line and body up to the first child
	Children  []*Section
}

// DirectEnd is the end of the section's own content, before its first child.
func (s *Section) DirectEnd() int {
	if len(s.Children) > 0 {
		return s.Children[0].Start
	}
	return s.End
}

// HeaderOnly reports whether the section's own content is just its header line.
func (s *Section) HeaderOnly(src string) bool {
	return s.HasHeader() && strings.TrimSpace(src[s.BodyStart:s.DirectEnd()]) == ""
}

// HasHeader reports whether the section was opened by a header line.
func (s *Section) HasHeader() bool {
	return s.Level > 0
}

type marker struct {
	start     int
	bodyStart int
	level     int
	title     string
}

var parser = goldmark.New().Parser()

// Build parses text and returns its root sections in document order.
// Concatenating the roots' spans reproduces text exactly. Empty text yields no sections.
func Build(src string, est tokens.Estimator) []*Section {
	if src == "" {
		return nil
	}
	markers := scan(src)
	if len(markers) == 0 {
		return []*Section{{
			Level:     0,
			Start:     0,
			End:       len(src),
			Tokens:    est.Count(src),
			OwnTokens: est.Count(src),
		}}
	}

	var roots []*Section
	if first := markers[0].start; first > 0 {
		if strings.TrimSpace(src[:first]) == "" {
			// Leading blank lines belong to the first header.
			markers[0].start = 0
		} else {
			roots = append(roots, &Section{Level: 0, Start: 0, End: first})
		}
	}

	var stack []*Section
	for i, m := range markers {
		sec := &Section{Title: m.title, Level: m.level, Start: m.start, BodyStart: m.bodyStart, End: len(src)}
		if i+1 < len(markers) {
			sec.End = markers[i+1].start
		}
		for len(stack) > 0 && stack[len(stack)-1].Level >= m.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, sec)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, sec)
		}
		stack = append(stack, sec)
	}

	for _, root := range roots {
		finalize(root, src, est)
	}
	return roots
}

// finalize widens each section to cover its subtree and totals its tokens.
func finalize(s *Section, src string, est tokens.Estimator) {
	for _, child := range s.Children {
		finalize(child, src, est)
	}
	if n := len(s.Children); n > 0 {
		s.End = s.Children[n-1].End
	}
	s.OwnTokens = est.Count(src[s.Start:s.DirectEnd()])
	s.Tokens = s.OwnTokens
	for _, child := range s.Children {
		s.Tokens += child.Tokens
	}
}

// scan finds top-level ATX and setext headings. Headings nested in
// lists, quotes or code blocks are body text.
func scan(src string) []marker {
	source := []byte(src)
	doc := parser.Parse(text.NewReader(source))

	var markers []marker
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			continue
		}
		var title strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if i > 0 {
				title.WriteByte(' ')
			}
			title.Write(seg.Value(source))
		}
		markers = append(markers, marker{
			start:     lineStart(src, lines.At(0).Start),
			bodyStart: headerEnd(src, lines.At(lines.Len()-1).Stop),
			level:     h.Level,
			title:     strings.TrimSpace(title.String()),
		})
	}
	return markers
}

// headerEnd returns the offset after the line holding pos, plus a setext
// underline if one follows.
func headerEnd(src string, pos int) int {
	end := lineEnd(src, pos)
	if end < len(src) && !strings.HasPrefix(strings.TrimLeft(src[lineStart(src, pos):end], " "), "#") {
		next := lineEnd(src, end)
		if u := strings.TrimSpace(src[end:next]); u != "" && strings.Trim(u, "=-") == "" {
			return next
		}
	}
	return end
}

func lineEnd(src string, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

func lineStart(src string, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return strings.LastIndexByte(src[:pos], '\n') + 1
}
