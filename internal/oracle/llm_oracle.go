package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"doc-chunker/internal/cache"
	"doc-chunker/internal/llm"
	"doc-chunker/internal/retry"
)

const retryBase = 500 * time.Millisecond

// LLMOracle asks a chat model for cut points. Raw replies are cached by
// request digest, so re-running over unchanged input makes no model calls.
type LLMOracle struct {
	client  llm.Client
	cache   cache.Cache
	log     *slog.Logger
	model   string
	timeout time.Duration
	retries int
	ttl     time.Duration
}

// Options tune a single oracle call.
type Options struct {
	Model    string
	Timeout  time.Duration // per attempt; zero means no limit beyond ctx
	Retries  int           // extra attempts after the first failure
	CacheTTL time.Duration
}

// NewLLM wires an oracle over client. A nil cache disables caching.
func NewLLM(client llm.Client, c cache.Cache, log *slog.Logger, opts Options) *LLMOracle {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &LLMOracle{
		client:  client,
		cache:   c,
		log:     log,
		model:   opts.Model,
		timeout: opts.Timeout,
		retries: opts.Retries,
		ttl:     opts.CacheTTL,
	}
}

func (o *LLMOracle) SuggestCuts(ctx context.Context, req Request) (Response, error) {
	if err := req.validate(); err != nil {
		return Response{Kind: Empty}, fmt.Errorf("invalid oracle request: %w", err)
	}
	key := o.cacheKey(req)
	if raw, ok, err := o.cache.Get(ctx, key); err != nil {
		o.log.Warn("oracle cache lookup failed", "err", err)
	} else if ok {
		o.log.Debug("oracle cache hit", "key", key)
		return Parse(raw), nil
	}

	prompt := BuildPrompt(req)
	var raw string
	err := retry.Do(ctx, o.retries+1, retryBase, func(ctx context.Context) error {
		callCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		var err error
		raw, err = o.client.Complete(callCtx, systemPrompt, prompt)
		if err != nil {
			o.log.Warn("oracle call failed", "err", err)
		}
		return err
	})
	if err != nil {
		return Response{Kind: Empty}, fmt.Errorf("failed to get cut suggestions: %w", err)
	}

	resp := Parse(raw)
	o.log.Debug("oracle response", "kind", resp.Kind.String(), "candidates", len(resp.Candidates))
	if resp.Kind != Empty {
		if err := o.cache.Set(ctx, key, raw, o.ttl); err != nil {
			o.log.Warn("failed to cache oracle response", "err", err)
		}
	}
	return resp, nil
}

func (o *LLMOracle) cacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", o.model, req.Candidates, req.ContextTokens)
	h.Write([]byte(req.Window))
	return hex.EncodeToString(h.Sum(nil))
}
