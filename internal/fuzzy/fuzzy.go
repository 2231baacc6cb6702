// Package fuzzy resolves a pair of approximate text fragments to a cut
// position inside a window of text.
package fuzzy

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultMinSimilarity is the normalized similarity a match must exceed.
const DefaultMinSimilarity = 0.7

// maxFragmentRunes bounds how much of each fragment takes part in scoring.
const maxFragmentRunes = 400

// Locator scores candidate cut positions by edit distance.
type Locator struct {
	MinSimilarity float64
}

// Locate resolves fragments with the default similarity threshold.
func Locate(window, before, after string) (int, bool) {
	return Locator{MinSimilarity: DefaultMinSimilarity}.Locate(window, before, after)
}

// Locate returns the byte offset p, 0 < p < len(window), where text ending
// in before meets text starting with after. Blank runs directly after the
// cut are skipped so they stay with the text before it. Ties go to the
// earliest offset.
func (l Locator) Locate(window, before, after string) (int, bool) {
	before = tail(before, maxFragmentRunes)
	after = head(strings.TrimLeft(after, " \t\r\n"), maxFragmentRunes)
	if window == "" || (strings.TrimSpace(before) == "" && after == "") {
		return 0, false
	}

	if p, ok := exact(window, before, after); ok {
		return skipBlanks(window, p), true
	}

	rs := []rune(window)
	if len(rs) < 2 {
		return 0, false
	}
	offsets := runeOffsets(window, len(rs))
	b, a := []rune(before), []rune(after)
	step := max(1, max(len(b), len(a))/4)

	// Cost is about len(rs)/step distance computations of up to
	// maxFragmentRunes² each: a few seconds per candidate on a
	// 150k-token window, comparable to the oracle call that produced it.
	best, bestScore := -1, math.MaxFloat64
	for x := 1; x < len(rs); x += step {
		if s := score(rs, x, b, a); s < bestScore {
			best, bestScore = x, s
		}
	}
	lo, hi := max(1, best-step), min(len(rs)-1, best+step)
	for x := lo; x <= hi; x++ {
		s := score(rs, x, b, a)
		if s < bestScore || (s == bestScore && x < best) {
			best, bestScore = x, s
		}
	}

	if 1-bestScore <= l.threshold() {
		return 0, false
	}
	return skipBlanks(window, offsets[best]), true
}

func (l Locator) threshold() float64 {
	if l.MinSimilarity <= 0 || l.MinSimilarity >= 1 {
		return DefaultMinSimilarity
	}
	return l.MinSimilarity
}

// exact looks for a verbatim occurrence of before whose continuation starts with after.
func exact(window, before, after string) (int, bool) {
	if strings.TrimSpace(before) == "" {
		i := strings.Index(window, after)
		if i > 0 {
			return i, true
		}
		return 0, false
	}
	from := 0
	for {
		i := strings.Index(window[from:], before)
		if i < 0 {
			return 0, false
		}
		p := from + i + len(before)
		if p > 0 && p < len(window) && strings.HasPrefix(strings.TrimLeft(window[p:], " \t\r\n"), after) {
			return p, true
		}
		from += i + 1
	}
}

// score is the combined edit distance of both fragments around x, normalized by their length.
func score(rs []rune, x int, before, after []rune) float64 {
	total := len(before) + len(after)
	if total == 0 {
		return 1
	}
	var d int
	if len(before) > 0 {
		d += levenshtein.ComputeDistance(string(before), string(rs[max(0, x-len(before)):x]))
	}
	if len(after) > 0 {
		d += levenshtein.ComputeDistance(string(after), string(rs[x:min(len(rs), x+len(after))]))
	}
	return float64(d) / float64(total)
}

func skipBlanks(window string, p int) int {
	q := p
	for q < len(window) && strings.IndexByte(" \t\r\n", window[q]) >= 0 {
		q++
	}
	if q >= len(window) {
		return p
	}
	return q
}

func runeOffsets(s string, n int) []int {
	offsets := make([]int, 0, n+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

func tail(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[len(rs)-n:])
}

func head(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
