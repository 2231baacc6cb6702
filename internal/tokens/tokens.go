// Package tokens estimates how many model tokens a piece of text occupies
// and maps token counts back to byte offsets.
package tokens

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Profile names a tokenizer approximation.
type Profile string

const (
	ProfileCL100K Profile = "cl100k_base"
	ProfileO200K  Profile = "o200k_base"
	ProfileWords  Profile = "words"
)

func init() {
	// Encodings ship with the binary; no network fetch on first use.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Estimator is a pure, deterministic text-to-token-count function.
// Count must be monotone under concatenation: Count(a+b) >= max(Count(a), Count(b)).
type Estimator interface {
	Count(text string) int
	// Offset returns the byte offset in text immediately after the first n tokens.
	// It returns len(text) when text holds n tokens or fewer, and always lands on a rune boundary.
	Offset(text string, n int) int
	Profile() Profile
}

// New returns the estimator for a profile name. An empty name selects cl100k_base.
func New(profile string) (Estimator, error) {
	switch Profile(profile) {
	case "", ProfileCL100K:
		return newBPE(ProfileCL100K)
	case ProfileO200K:
		return newBPE(ProfileO200K)
	case ProfileWords:
		return Words{}, nil
	default:
		return nil, fmt.Errorf("invalid token profile: %s (valid options: cl100k_base, o200k_base, words)", profile)
	}
}

var (
	encodings   = map[Profile]*tiktoken.Tiktoken{}
	encodingsMu sync.Mutex
)

// BPE counts tokens with a tiktoken byte-pair encoding.
type BPE struct {
	profile Profile
	enc     *tiktoken.Tiktoken
}

func newBPE(profile Profile) (*BPE, error) {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	enc, ok := encodings[profile]
	if !ok {
		var err error
		enc, err = tiktoken.GetEncoding(string(profile))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s encoding: %w", profile, err)
		}
		encodings[profile] = enc
	}
	return &BPE{profile: profile, enc: enc}, nil
}

func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(b.enc.Encode(text, nil, nil))
}

func (b *BPE) Offset(text string, n int) int {
	if n <= 0 || text == "" {
		return 0
	}
	ids := b.enc.Encode(text, nil, nil)
	if n >= len(ids) {
		return len(text)
	}
	off := len(b.enc.Decode(ids[:n]))
	return runeFloor(text, off)
}

func (b *BPE) Profile() Profile { return b.profile }

// Words treats every whitespace-separated word as one token.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}

// Offset returns the start of word n+1, so text[:Offset(text, n)] holds exactly n words.
func (Words) Offset(text string, n int) int {
	if n <= 0 {
		return 0
	}
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			if words == n {
				return i
			}
			words++
			inWord = true
		}
	}
	return len(text)
}

func (Words) Profile() Profile { return ProfileWords }

func runeFloor(text string, off int) int {
	if off >= len(text) {
		return len(text)
	}
	for off > 0 && !utf8.RuneStart(text[off]) {
		off--
	}
	return off
}
