package llm

import "context"

// Client is a minimal chat-completion interface to allow pluggable providers.
type Client interface {
	// Complete sends one system and one user message and returns the reply text.
	Complete(ctx context.Context, system, user string) (string, error)
}
