package defectscope

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"
)

// --- Embedder mock ---

type mockEmbedder struct {
	mu     sync.Mutex
	texts  []string
	fn     func(ctx context.Context, text string) (EmbeddingResult, error)
	failOn string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(ctx, text)
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return EmbeddingResult{}, errors.New("provider down")
	}
	return EmbeddingResult{Embedding: keywordVector(text), TotalTokens: 1}, nil
}

func (m *mockEmbedder) maxRunes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	longest := 0
	for _, t := range m.texts {
		longest = max(longest, utf8.RuneCountInString(t))
	}
	return longest
}

// keywordVector places texts about brakes, engines and everything else on separate axes.
func keywordVector(text string) []float32 {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "brake"):
		return []float32{1, 0, 0}
	case strings.Contains(t, "engine"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

// --- helpers ---

func complaints(summaries ...string) []Complaint {
	out := make([]Complaint, len(summaries))
	for i, s := range summaries {
		out[i] = Complaint{ComplaintID: string(rune('A' + i)), Component: "UNKNOWN", Summary: s}
	}
	return out
}
