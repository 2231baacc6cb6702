// Package oracle asks a language model where a window of text should be cut.
package oracle

import (
	"context"
	"fmt"
)

// Request describes one window of text awaiting a cut.
type Request struct {
	Window        string
	Candidates    int // K, how many cut points to ask for
	ContextTokens int // k, approximate size of each fragment
}

// Candidate locates a proposed cut by the text on either side of it.
// Fragments are approximate: the model may paraphrase or truncate them.
type Candidate struct {
	Before string
	After  string
	Title  string
}

// Kind classifies how a response was recovered.
type Kind int

const (
	Empty Kind = iota
	WellFormed
	Salvaged
)

func (k Kind) String() string {
	switch k {
	case WellFormed:
		return "well-formed"
	case Salvaged:
		return "salvaged"
	default:
		return "empty"
	}
}

// Response holds candidates in order of preference.
type Response struct {
	Kind       Kind
	Candidates []Candidate
}

// Oracle proposes cut candidates for a window.
// An error means the call itself failed; an Empty response means it produced nothing usable.
type Oracle interface {
	SuggestCuts(ctx context.Context, req Request) (Response, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) SuggestCuts(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// None never proposes a cut. Windows that overflow fall back to forced cuts.
var None Oracle = Func(func(context.Context, Request) (Response, error) {
	return Response{Kind: Empty}, nil
})

func (r Request) validate() error {
	if r.Window == "" {
		return fmt.Errorf("empty window")
	}
	if r.Candidates < 1 {
		return fmt.Errorf("candidates must be at least 1, got %d", r.Candidates)
	}
	if r.ContextTokens < 1 {
		return fmt.Errorf("context tokens must be at least 1, got %d", r.ContextTokens)
	}
	return nil
}
