package oracle

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

type wireCut struct {
	TokensBefore string `json:"tokens_before"`
	TokensAfter  string `json:"tokens_after"`
	ChunkTitle   string `json:"chunk_title"`
	TextBefore   string `json:"text_before"`
	TextAfter    string `json:"text_after"`
	Title        string `json:"title"`
}

type wireResponse struct {
	CutPoints []wireCut `json:"cut_points"`
	Cuts      []wireCut `json:"cuts"`
}

var (
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

	fieldPattern = regexp.MustCompile(`(?s)["']?\b(tokens_before|tokens_after|chunk_title|text_before|text_after|title)\b["']?\s*[:=]\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)')`)

	looseUnescaper = strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\n`, "\n", `\t`, "\t", `\\`, `\`)
)

// Parse turns raw model output into a Response. It never fails: output
// that yields no usable candidate is classified Empty.
func Parse(raw string) Response {
	body := stripFences(raw)
	if body == "" {
		return Response{Kind: Empty}
	}
	if cands, ok := parseStrict(body); ok {
		if len(cands) == 0 {
			return Response{Kind: Empty}
		}
		return Response{Kind: WellFormed, Candidates: cands}
	}
	if cands := salvage(body); len(cands) > 0 {
		return Response{Kind: Salvaged, Candidates: cands}
	}
	return Response{Kind: Empty}
}

func stripFences(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

func parseStrict(body string) ([]Candidate, bool) {
	var resp wireResponse
	if err := json.Unmarshal([]byte(body), &resp); err == nil {
		return collect(append(resp.CutPoints, resp.Cuts...)), true
	}
	var list []wireCut
	if err := json.Unmarshal([]byte(body), &list); err == nil {
		return collect(list), true
	}
	return nil, false
}

func collect(wire []wireCut) []Candidate {
	var out []Candidate
	for _, w := range wire {
		c := Candidate{
			Before: firstNonEmpty(w.TokensBefore, w.TextBefore),
			After:  firstNonEmpty(w.TokensAfter, w.TextAfter),
			Title:  cleanTitle(firstNonEmpty(w.ChunkTitle, w.Title)),
		}
		if usable(c) {
			out = append(out, c)
		}
	}
	return out
}

// salvage pulls quoted fields out of output that is not valid JSON:
// unquoted or single-quoted keys, mixed quoting, and prose around the payload.
// A repeated key starts the next candidate, so field order does not matter.
func salvage(body string) []Candidate {
	var out []Candidate
	var cur Candidate
	seen := map[string]bool{}
	flush := func() {
		if usable(cur) {
			cur.Title = cleanTitle(cur.Title)
			out = append(out, cur)
		}
		cur = Candidate{}
		seen = map[string]bool{}
	}

	for _, idx := range fieldPattern.FindAllStringSubmatchIndex(body, -1) {
		field := canonicalField(body[idx[2]:idx[3]])
		if seen[field] {
			flush()
		}
		seen[field] = true
		var val string
		if idx[4] >= 0 {
			val = unescape(body[idx[4]:idx[5]], true)
		} else {
			val = unescape(body[idx[6]:idx[7]], false)
		}
		switch field {
		case "before":
			cur.Before = val
		case "after":
			cur.After = val
		case "title":
			cur.Title = val
		}
	}
	flush()
	return out
}

func canonicalField(key string) string {
	switch key {
	case "tokens_before", "text_before":
		return "before"
	case "tokens_after", "text_after":
		return "after"
	default:
		return "title"
	}
}

func unescape(v string, doubleQuoted bool) string {
	if doubleQuoted {
		if s, err := strconv.Unquote(`"` + v + `"`); err == nil {
			return s
		}
	}
	return looseUnescaper.Replace(v)
}

func usable(c Candidate) bool {
	return strings.TrimSpace(c.Before) != "" || strings.TrimSpace(c.After) != ""
}

// cleanTitle collapses whitespace so titles stay on one line.
func cleanTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
