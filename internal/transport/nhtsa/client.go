// Package nhtsa is the HTTP client for the NHTSA vPIC VIN decoder and the recalls API.
package nhtsa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/metrics"
)

// Default endpoints and client identity.
const (
	DefaultVPICBaseURL    = "https://vpic.nhtsa.dot.gov/api"
	DefaultRecallsBaseURL = "https://api.nhtsa.gov"
	UserAgent             = "VehicleDefectAnalyzer/1.0"

	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultInitialWait = 500 * time.Millisecond
	maxWait            = 5 * time.Second
	maxBodyBytes       = 8 << 20
)

// Config holds the NHTSA client settings. Zero values select defaults.
type Config struct {
	VPICBaseURL    string
	RecallsBaseURL string
	Timeout        time.Duration
	RatePerSec     float64 // 0 = unlimited
	Burst          int
	MaxAttempts    int
	InitialWait    time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to both NHTSA services through one rate limiter.
type Client struct {
	vpicBase    string
	recallsBase string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	initialWait time.Duration
	logger      *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.VPICBaseURL == "" {
		cfg.VPICBaseURL = DefaultVPICBaseURL
	}
	if cfg.RecallsBaseURL == "" {
		cfg.RecallsBaseURL = DefaultRecallsBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = defaultInitialWait
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		vpicBase:    cfg.VPICBaseURL,
		recallsBase: cfg.RecallsBaseURL,
		http:        hc,
		limiter:     rate.NewLimiter(limit, cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		initialWait: cfg.InitialWait,
		logger:      logger,
	}
}

// retryableError marks failures worth another attempt (429, 5xx, transport errors).
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// getJSON fetches url and decodes the JSON body into out, retrying with
// exponential backoff and jitter.
func (c *Client) getJSON(ctx context.Context, service, url string, out any) error {
	wait := c.initialWait
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.getOnce(ctx, service, url, out)
		if err == nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(service, "ok").Inc()
			return nil
		}

		var re *retryableError
		if !errors.As(err, &re) || attempt == c.maxAttempts {
			break
		}

		sleep := min(time.Duration(float64(wait)*(0.5+rand.Float64())), maxWait)
		c.logger.Debug("Retrying NHTSA request",
			zap.String("service", service),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", sleep),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", service, ctx.Err())
		case <-time.After(sleep):
		}
		wait *= 2
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
	return err
}

func (c *Client) getOnce(ctx context.Context, service, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s request: %w", service, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", service, ctx.Err())
		}
		return &retryableError{fmt.Errorf("%s: %w: %w", service, domain.ErrUpstream, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		upstreamErr := domain.NewUpstreamError(service, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return &retryableError{upstreamErr}
		}
		return upstreamErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", service, domain.ErrUpstream, err)
	}
	return nil
}

// flexString accepts a JSON string or number; vPIC and the recalls API are not consistent.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("unexpected value %s", data)
	}
	*s = flexString(data)
	return nil
}
