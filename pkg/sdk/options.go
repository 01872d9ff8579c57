package defectscope

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/defectscope/defectscope/internal/domain"
	openaiEmb "github.com/defectscope/defectscope/internal/transport/openai"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	embedder domain.Embedder

	workers       int
	ratePerSec    float64
	burst         int
	callTimeout   time.Duration
	maxInputChars int
	defaultK      int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the text embedding provider.
// Required for BuildIndex and Search; Analyze works without it.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		if e == nil {
			c.embedder = nil
			return
		}
		c.embedder = &embedderAdapter{inner: e}
	})
}

// WithOpenAI embeds through an OpenAI-compatible embeddings API.
// An empty model selects text-embedding-3-small.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey: apiKey,
			Model:  model,
		})
	})
}

// WithWorkers bounds the number of concurrent embedding calls during BuildIndex.
// Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithRate limits embedding calls per second. Zero disables the limit (default).
func WithRate(perSec float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.ratePerSec = perSec
		c.burst = burst
	})
}

// WithCallTimeout sets the deadline of a single embedding call. Default: 30s.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.callTimeout = d
	})
}

// WithMaxInputChars lowers the number of characters sent to the provider per text.
// Default and maximum: 2000; New rejects larger values.
func WithMaxInputChars(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxInputChars = n
	})
}

// WithDefaultK sets the number of hits Search returns when called with k <= 0.
// Default: 5.
func WithDefaultK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultK = k
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
