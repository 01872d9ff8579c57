// Package health aggregates dependency checks into one status.
package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the aggregate verdict served by /health.
type Status string

// Aggregate statuses. A failing required probe makes the service Unhealthy, a failing optional one Degraded.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome of a single probe.
type CheckResult string

// Probe outcomes.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name     string
	required bool
	run      func(ctx context.Context) error
}

// Service runs the configured probes concurrently, each under its own deadline.
type Service struct {
	probes []probe
}

// New creates a Service. The dataset is required; store and embedding are optional and may be nil.
func New(dataset Pinger, store Pinger, embedding EmbeddingChecker) *Service {
	s := &Service{}
	if dataset != nil {
		s.probes = append(s.probes, probe{name: "dataset", required: true, run: dataset.Ping})
	}
	if store != nil {
		s.probes = append(s.probes, probe{name: "database", run: store.Ping})
	}
	if embedding != nil {
		s.probes = append(s.probes, probe{name: "embedding", run: embedding.HealthCheck})
	}
	return s
}

// Check probes every dependency. A slow provider costs at most checkTimeout, not the sum of all probes.
func (s *Service) Check(ctx context.Context) Report {
	failed := make([]bool, len(s.probes))

	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			failed[i] = p.run(pctx) != nil
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	for i, p := range s.probes {
		if !failed[i] {
			report.Checks[p.name] = CheckOK
			continue
		}
		report.Checks[p.name] = CheckError
		switch {
		case p.required:
			report.Status = Unhealthy
		case report.Status == Healthy:
			report.Status = Degraded
		}
	}
	return report
}
