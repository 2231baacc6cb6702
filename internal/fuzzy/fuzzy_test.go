package fuzzy

import (
	"fmt"
	"strings"
	"testing"
)

func TestLocate(t *testing.T) {
	window := "The first paragraph ends here.\n\nThe second paragraph begins now and keeps going."

	tests := []struct {
		name   string
		before string
		after  string
		want   int
		wantOK bool
	}{
		{
			name:   "exact match skips blank lines",
			before: "paragraph ends here.",
			after:  "The second paragraph",
			want:   strings.Index(window, "The second"),
			wantOK: true,
		},
		{
			name:   "small typos still resolve",
			before: "paragraf ends here.",
			after:  "The secnd paragraph",
			want:   strings.Index(window, "The second"),
			wantOK: true,
		},
		{
			name:   "only after fragment",
			before: "",
			after:  "The second paragraph",
			want:   strings.Index(window, "The second"),
			wantOK: true,
		},
		{
			name:   "unrelated fragments fail",
			before: "completely different words",
			after:  "nothing like the window",
			wantOK: false,
		},
		{
			name:   "empty fragments fail",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Locate(window, tt.before, tt.after)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (offset %d)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("offset = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLocateStaysInsideWindow(t *testing.T) {
	window := "alpha beta gamma"

	cases := [][2]string{
		{"", "alpha beta"},
		{"alpha beta gamma", ""},
		{"gamma", ""},
		{"alph", "a beta"},
	}
	for _, c := range cases {
		p, ok := Locate(window, c[0], c[1])
		if ok && (p <= 0 || p >= len(window)) {
			t.Errorf("Locate(%q, %q) = %d, outside (0, %d)", c[0], c[1], p, len(window))
		}
	}
}

func TestLocateTiesPickEarliest(t *testing.T) {
	window := "one two. one two. one two."
	p, ok := Locate(window, "one two.", "one two.")
	if !ok {
		t.Fatal("expected a match")
	}
	if want := strings.Index(window, " one") + 1; p != want {
		t.Errorf("offset = %d, want earliest %d", p, want)
	}
}

func TestLocateMultibyte(t *testing.T) {
	window := "Größe und Maße · erster Teil. Zweiter Teil über Überläufe."
	p, ok := Locate(window, "erster Teil.", "Zweiter Teil")
	if !ok {
		t.Fatal("expected a match")
	}
	if !strings.HasPrefix(window[p:], "Zweiter") {
		t.Errorf("cut landed at %q", window[p:])
	}

	// Fuzzy path on multibyte text must still return a rune boundary.
	p, ok = Locate(window, "ersten Teil,", "Zweiten Teil")
	if !ok {
		t.Fatal("expected a fuzzy match")
	}
	if !strings.HasPrefix(window[p:], "Zweiter") {
		t.Errorf("fuzzy cut landed at %q", window[p:])
	}
}

func TestLocatorThreshold(t *testing.T) {
	window := "abcdefghij klmnopqrst"
	strict := Locator{MinSimilarity: 0.99}
	if _, ok := strict.Locate(window, "abcdefgxij", "klmnopqrsx"); ok {
		t.Errorf("strict locator should reject inexact fragments")
	}
	loose := Locator{MinSimilarity: 0.5}
	if _, ok := loose.Locate(window, "abcdefgxij", "klmnopqrsx"); !ok {
		t.Errorf("loose locator should accept near fragments")
	}
}

// numbered returns n distinct space-separated words.
func numbered(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "w%d ", i)
	}
	return sb.String()
}

func TestLocateLongFragmentsInLargeWindow(t *testing.T) {
	head := numbered(3000)
	window := head + "Chapter eight opens with rain and wind."
	before := strings.Replace(head[len(head)-1200:], "w2990", "w299O", 1)

	p, ok := Locate(window, before, "Chapter eight opens with rian")
	if !ok {
		t.Fatal("expected a fuzzy match")
	}
	if p != len(head) {
		t.Errorf("cut at %d, want %d (%q)", p, len(head), window[p:min(len(window), p+20)])
	}
}

func BenchmarkLocateLargeWindow(b *testing.B) {
	window := numbered(20000)
	before := "nothing in the window looks like this fragment at all"
	after := "and neither does this one"
	for i := 0; i < b.N; i++ {
		Locate(window, before, after)
	}
}
