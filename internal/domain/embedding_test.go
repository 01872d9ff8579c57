package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func TestTruncatingEmbedder_CutsLongText(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewTruncatingEmbedder(inner, 0)

	result, err := emb.Embed(context.Background(), strings.Repeat("a", 2500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.got) != DefaultMaxInputChars {
		t.Errorf("expected %d chars, got %d", DefaultMaxInputChars, len(inner.got))
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestTruncatingEmbedder_LimitCannotExceedCeiling(t *testing.T) {
	inner := &stubEmbedder{}
	emb := NewTruncatingEmbedder(inner, 5000)

	if _, err := emb.Embed(context.Background(), strings.Repeat("é", 4000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(inner.got); n != DefaultMaxInputChars {
		t.Errorf("provider received %d chars, want %d", n, DefaultMaxInputChars)
	}
}

func TestTruncatingEmbedder_ShortTextUnchanged(t *testing.T) {
	inner := &stubEmbedder{}
	emb := NewTruncatingEmbedder(inner, 10)

	if _, err := emb.Embed(context.Background(), "brakes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "brakes" {
		t.Errorf("expected 'brakes', got %q", inner.got)
	}
}

func TestTruncatingEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewTruncatingEmbedder(&stubEmbedder{err: innerErr}, 5)

	_, err := emb.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestTruncate_Runes(t *testing.T) {
	s := strings.Repeat("ё", 5)
	got := Truncate(s, 3)
	if utf8.RuneCountInString(got) != 3 {
		t.Errorf("expected 3 runes, got %d (%q)", utf8.RuneCountInString(got), got)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated string is not valid UTF-8")
	}
	if Truncate(s, 5) != s {
		t.Error("exact-length string must be unchanged")
	}
	if Truncate(s, 0) != s {
		t.Error("non-positive limit must disable truncation")
	}
}

func TestUpstreamError_Is(t *testing.T) {
	err := NewUpstreamError("recalls", 503)
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
	if !errors.Is(ErrNoEmbeddings, ErrNoData) {
		t.Error("ErrNoEmbeddings must wrap ErrNoData")
	}
	if !errors.Is(ErrSessionNotFound, ErrNotFound) {
		t.Error("ErrSessionNotFound must wrap ErrNotFound")
	}
}
