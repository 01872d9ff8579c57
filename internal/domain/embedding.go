package domain

import (
	"context"
	"fmt"
)

// DefaultMaxInputChars is the longest text, in characters, sent to the embedding provider.
// It is also the ceiling: the provider rejects longer inputs, so no setting may raise it.
const DefaultMaxInputChars = 2000

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// TruncatingEmbedder is a domain decorator that cuts text to a fixed number of characters
// before delegating. Characters are runes, so multi-byte text is never split mid-rune.
type TruncatingEmbedder struct {
	inner    Embedder
	maxChars int
}

// NewTruncatingEmbedder creates a truncating decorator. maxChars <= 0 or above
// DefaultMaxInputChars selects DefaultMaxInputChars.
func NewTruncatingEmbedder(inner Embedder, maxChars int) *TruncatingEmbedder {
	if maxChars <= 0 || maxChars > DefaultMaxInputChars {
		maxChars = DefaultMaxInputChars
	}
	return &TruncatingEmbedder{inner: inner, maxChars: maxChars}
}

// Embed truncates text and delegates to the inner embedder.
func (e *TruncatingEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, Truncate(text, e.maxChars))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("truncating embed: %w", err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *TruncatingEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Truncate returns the first maxChars characters of s.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
