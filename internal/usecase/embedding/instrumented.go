// Package embedding holds the outermost embedder decorator: tracing, logging and request usage.
package embedding

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/metrics"
)

const tracerName = "github.com/defectscope/defectscope/embedding"

// Settings describe the provider chain beneath the decorator.
type Settings struct {
	Provider string
	Model    string
	// MaxInputChars is the cut applied further down the chain. Longer inputs are counted here.
	MaxInputChars int
}

// InstrumentedEmbedder traces each call and adds its tokens to the request's usage collector.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	settings Settings
	tracer   trace.Tracer
	attrs    []attribute.KeyValue
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, settings Settings, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		settings: settings,
		tracer:   otel.Tracer(tracerName),
		attrs: []attribute.KeyValue{
			attribute.String("embedding.provider", settings.Provider),
			attribute.String("embedding.model", settings.Model),
		},
		logger: logger.With(zap.String("provider", settings.Provider), zap.String("model", settings.Model)),
	}
}

// Embed implements domain.Embedder.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	chars := utf8.RuneCountInString(text)
	truncated := e.settings.MaxInputChars > 0 && chars > e.settings.MaxInputChars
	if truncated {
		metrics.EmbeddingTruncatedTotal.Inc()
	}

	ctx, span := e.tracer.Start(ctx, "embedding.embed", trace.WithAttributes(e.attrs...))
	defer span.End()
	span.SetAttributes(attribute.Int("embedding.input_chars", chars), attribute.Bool("embedding.truncated", truncated))

	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		e.logger.Warn("Embedding request failed", zap.Int("input_chars", chars), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	span.SetAttributes(
		attribute.Int("embedding.dimensions", len(result.Embedding)),
		attribute.Int("embedding.total_tokens", result.TotalTokens),
	)
	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if ce := e.logger.Check(zap.DebugLevel, "Embedding request completed"); ce != nil {
		ce.Write(
			zap.Int("dimensions", len(result.Embedding)),
			zap.Int("prompt_tokens", result.PromptTokens),
			zap.Int("total_tokens", result.TotalTokens),
			zap.Bool("cached", result.TotalTokens == 0),
		)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
