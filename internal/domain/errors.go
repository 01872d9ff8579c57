package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound signals an unknown or expired analysis session.
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	// ErrVINNotFound signals that a VIN could not be decoded into make, model and year.
	ErrVINNotFound = fmt.Errorf("vin %w", ErrNotFound)

	// ErrInvalidVehicle signals an incomplete vehicle identity or a malformed VIN.
	ErrInvalidVehicle = errors.New("invalid vehicle")
	// ErrEmptyQuery signals a blank similarity-search query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNoData signals that the batch holds no records to work on.
	ErrNoData = errors.New("no data")
	// ErrNoEmbeddings signals a search against an empty embedding index.
	ErrNoEmbeddings = fmt.Errorf("no embeddings: %w", ErrNoData)

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUpstream signals a failure of an external data service (VIN decoding, recalls).
	ErrUpstream = errors.New("upstream service error")
)

// UpstreamError wraps ErrUpstream with the HTTP status reported by the service.
type UpstreamError struct {
	Service    string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", ErrUpstream.Error(), e.Service, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// NewUpstreamError creates an upstream error for a non-success HTTP status.
func NewUpstreamError(service string, statusCode int) error {
	return &UpstreamError{Service: service, StatusCode: statusCode}
}
