package tokens

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNew(t *testing.T) {
	tests := []struct {
		profile string
		want    Profile
		wantErr bool
	}{
		{"", ProfileCL100K, false},
		{"cl100k_base", ProfileCL100K, false},
		{"words", ProfileWords, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			est, err := New(tt.profile)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for profile %q", tt.profile)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if est.Profile() != tt.want {
				t.Errorf("got profile %s, want %s", est.Profile(), tt.want)
			}
		})
	}
}

func TestWordsCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n\t", 0},
		{"one", 1},
		{"one two  three\nfour", 4},
		{"# Title\n\nbody text", 4},
	}

	for _, tt := range tests {
		if got := (Words{}).Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestWordsOffset(t *testing.T) {
	text := "alpha beta  gamma\ndelta"

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 6},
		{2, 12},
		{3, 18},
		{4, len(text)},
		{10, len(text)},
	}

	for _, tt := range tests {
		got := (Words{}).Offset(text, tt.n)
		if got != tt.want {
			t.Errorf("Offset(%d) = %d, want %d", tt.n, got, tt.want)
		}
		if c := (Words{}).Count(text[:got]); c != min(tt.n, 4) {
			t.Errorf("prefix of Offset(%d) holds %d words", tt.n, c)
		}
	}
}

func TestBPECountMonotone(t *testing.T) {
	est, err := New("cl100k_base")
	if err != nil {
		t.Fatalf("failed to load encoding: %v", err)
	}
	a := "The quick brown fox jumps over the lazy dog. "
	b := "Ünïcödé text with emoji 🦊 and CJK 文字."

	if est.Count("") != 0 {
		t.Errorf("empty text should count zero tokens")
	}
	ab := est.Count(a + b)
	if ab < est.Count(a) || ab < est.Count(b) {
		t.Errorf("count not monotone: |a|=%d |b|=%d |ab|=%d", est.Count(a), est.Count(b), ab)
	}
}

func TestBPEOffset(t *testing.T) {
	est, err := New("cl100k_base")
	if err != nil {
		t.Fatalf("failed to load encoding: %v", err)
	}
	text := strings.Repeat("Ünïcödé 文字 🦊 words and more words. ", 20)
	total := est.Count(text)

	if got := est.Offset(text, 0); got != 0 {
		t.Errorf("Offset(0) = %d, want 0", got)
	}
	if got := est.Offset(text, total); got != len(text) {
		t.Errorf("Offset(total) = %d, want %d", got, len(text))
	}

	prev := 0
	for n := 1; n < total; n += 7 {
		off := est.Offset(text, n)
		if off < prev {
			t.Fatalf("offset went backwards at n=%d: %d < %d", n, off, prev)
		}
		if off < len(text) && !utf8.RuneStart(text[off]) {
			t.Fatalf("offset %d for n=%d splits a rune", off, n)
		}
		prev = off
	}
}
