package defectscope

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "defectscope"

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    *prometheus.CounterVec
}

// newSDKMetrics registers the SDK collectors on reg. Clients sharing a registry share collectors.
func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	operations, err := adopt(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK calls by operation and outcome.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	duration, err := adopt(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "Wall time of SDK calls. Index builds dominate the upper buckets.",
		Buckets:   []float64{.001, .01, .1, .5, 1, 5, 15, 60, 300},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	records, err := adopt(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "sdk",
		Name:      "records_total",
		Help:      "Complaints analysed or indexed, and hits returned by search.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	return &sdkMetrics{operations: operations, duration: duration, records: records}, nil
}

// adopt registers c, or returns the equivalent collector a previous client registered.
func adopt[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	var dup prometheus.AlreadyRegisteredError
	switch err := reg.Register(c); {
	case err == nil:
		return c, nil
	case errors.As(err, &dup):
		if prev, ok := dup.ExistingCollector.(C); ok {
			return prev, nil
		}
		return c, fmt.Errorf("defectscope: %T already registered under the same name", dup.ExistingCollector)
	default:
		return c, fmt.Errorf("defectscope: register metric: %w", err)
	}
}

// observer reports SDK calls to an optional slog logger and optional collectors.
// A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	if reg == nil {
		return &observer{logger: logger}, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &observer{logger: logger, metrics: m}, nil
}

// begin starts timing op; the returned func records the outcome.
func (o *observer) begin(op string) func(records int, err error) {
	start := time.Now()
	return func(records int, err error) {
		if o == nil {
			return
		}
		elapsed := time.Since(start)
		o.record(op, records, elapsed, err)
		o.log(op, records, elapsed, err)
	}
}

func (o *observer) record(op string, records int, elapsed time.Duration, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.operations.WithLabelValues(op, status).Inc()
	o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	o.metrics.records.WithLabelValues(op).Add(float64(records))
}

func (o *observer) log(op string, records int, elapsed time.Duration, err error) {
	if o.logger == nil {
		return
	}
	attrs := []any{slog.String("op", op), slog.Int("records", records), slog.Duration("duration", elapsed)}
	if err != nil {
		o.logger.Warn("defectscope operation failed", append(attrs, slog.Any("error", err))...)
		return
	}
	o.logger.Debug("defectscope operation completed", attrs...)
}
