package health

import "context"

// Pinger checks a dependency's availability: the complaint snapshot or the session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
