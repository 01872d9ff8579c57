package embedding

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	result  domain.EmbeddingResult
	err     error
	healthy error
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEmbedder) HealthCheck(_ context.Context) error { return m.healthy }

func testSettings(maxChars int) Settings {
	return Settings{Provider: "test", Model: "test-model", MaxInputChars: maxChars}
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	p := NewInstrumentedEmbedder(inner, testSettings(0), zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
}

func TestInstrumentedEmbedder_RecordsUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 100,
		TotalTokens:  100,
	}}
	p := NewInstrumentedEmbedder(inner, testSettings(0), zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	for range 2 {
		if _, err := p.Embed(ctx, "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tokens, calls := usage.Totals()
	if tokens != 200 || calls != 2 {
		t.Errorf("usage = %d tokens / %d calls, want 200 / 2", tokens, calls)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	innerErr := errors.New("provider down")
	p := NewInstrumentedEmbedder(&mockEmbedder{err: innerErr}, testSettings(0), zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	_, err := p.Embed(ctx, "hello")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
	if _, calls := usage.Totals(); calls != 0 {
		t.Errorf("failed call must not be counted, got %d", calls)
	}
}

func TestInstrumentedEmbedder_CountsLongInputs(t *testing.T) {
	p := NewInstrumentedEmbedder(&mockEmbedder{}, testSettings(10), zap.NewNop())

	before := testutil.ToFloat64(metrics.EmbeddingTruncatedTotal)
	_, _ = p.Embed(context.Background(), strings.Repeat("x", 11))
	_, _ = p.Embed(context.Background(), "short")

	if got := testutil.ToFloat64(metrics.EmbeddingTruncatedTotal) - before; got != 1 {
		t.Errorf("truncated counter delta = %f, want 1", got)
	}
}

func TestInstrumentedEmbedder_HealthCheckDelegates(t *testing.T) {
	want := errors.New("unreachable")
	p := NewInstrumentedEmbedder(&mockEmbedder{healthy: want}, testSettings(0), zap.NewNop())

	if err := p.HealthCheck(context.Background()); !errors.Is(err, want) {
		t.Errorf("HealthCheck() = %v, want %v", err, want)
	}
}
