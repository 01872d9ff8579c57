// Package session orchestrates one vehicle analysis: resolve, load, analyse, embed, store.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
	"github.com/defectscope/defectscope/internal/logger"
	"github.com/defectscope/defectscope/internal/metrics"
	analysisuc "github.com/defectscope/defectscope/internal/usecase/analysis"
)

// recallsUnavailable is what clients see when the recall lookup fails.
const recallsUnavailable = "recall lookup unavailable"

// OpenRequest selects a vehicle by VIN or by make, model and year. A VIN wins.
type OpenRequest struct {
	VIN   string
	Make  string
	Model string
	Year  string
}

// Service manages analysis sessions.
type Service struct {
	repo       Repository
	complaints ComplaintSource
	recalls    RecallSource
	vins       VINDecoder
	builder    IndexBuilder
	searcher   Searcher
	events     EventPublisher
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// New creates a session service. events may be nil.
func New(
	repo Repository,
	complaints ComplaintSource,
	recalls RecallSource,
	vins VINDecoder,
	builder IndexBuilder,
	searcher Searcher,
	events EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		complaints: complaints,
		recalls:    recalls,
		vins:       vins,
		builder:    builder,
		searcher:   searcher,
		events:     events,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Resolve turns a request into a validated vehicle, decoding the VIN if one is given.
func (s *Service) Resolve(ctx context.Context, req OpenRequest) (vehicle.Vehicle, string, error) {
	if vin := strings.TrimSpace(req.VIN); vin != "" {
		v, err := s.vins.DecodeVIN(ctx, vin)
		if err != nil {
			return vehicle.Vehicle{}, "", fmt.Errorf("decode vin: %w", err)
		}
		return v, strings.ToUpper(vin), nil
	}
	v := vehicle.New(req.Make, req.Model, req.Year)
	if err := v.Validate(); err != nil {
		return vehicle.Vehicle{}, "", err
	}
	return v, "", nil
}

// Open runs a full analysis and stores it as a new session.
// A failed recall lookup is recorded on the session, not returned.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*domsession.Session, error) {
	log := logger.FromContext(ctx, s.logger)

	v, vin, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		records   []complaint.Record
		recalls   []recall.Recall
		recallErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		records, err = s.complaints.Complaints(ctx, v)
		if err != nil {
			return fmt.Errorf("load complaints for %s: %w", v, err)
		}
		return nil
	})
	g.Go(func() error {
		recalls, recallErr = s.recalls.Recalls(ctx, v)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if records == nil {
		records = []complaint.Record{}
	}

	sess := &domsession.Session{
		ID:         s.newID(),
		VIN:        vin,
		Vehicle:    v,
		Complaints: records,
		Recalls:    recalls,
		CreatedAt:  s.now().UTC(),
	}
	if recallErr != nil {
		log.Warn("Recall lookup failed", zap.String("vehicle", v.String()), zap.Error(recallErr))
		sess.Recalls = []recall.Recall{}
		sess.RecallsError = recallsUnavailable
	}
	if sess.Recalls == nil {
		sess.Recalls = []recall.Recall{}
	}

	sess.Analysis = s.observe(analysisuc.Analyze(records), len(records))

	idx, report := s.builder.Build(ctx, records)
	sess.Index = idx
	sess.Embeddings = domsession.Summarize(report)

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	log.Info("Session opened",
		zap.String("session_id", sess.ID),
		zap.String("vehicle", v.String()),
		zap.Int("complaints", len(records)),
		zap.Int("recalls", len(sess.Recalls)),
		zap.Int("indexed", sess.Embeddings.Indexed),
		zap.String("risk", sess.Analysis.Risk.Level),
	)

	if s.events != nil {
		if err := s.events.AnalysisCompleted(ctx, sess); err != nil {
			log.Warn("Publish analysis event failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	return sess, nil
}

// Analyze normalizes and aggregates an ad-hoc batch without creating a session.
func (s *Service) Analyze(raws []complaint.Raw) analysis.Result {
	records := complaint.NormalizeAll(raws)
	return s.observe(analysisuc.Analyze(records), len(records))
}

// Get returns a live session.
func (s *Service) Get(ctx context.Context, id string) (*domsession.Session, error) {
	return s.repo.Get(ctx, id)
}

// Close discards a session. Closing an unknown session succeeds.
func (s *Service) Close(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Complaints returns the session's complaints, optionally limited to one component.
func (s *Service) Complaints(ctx context.Context, id, component string) ([]complaint.Record, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	component = strings.TrimSpace(component)
	if component == "" {
		return sess.Complaints, nil
	}
	out := make([]complaint.Record, 0, len(sess.Complaints))
	for _, r := range sess.Complaints {
		if strings.EqualFold(r.Component, component) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Search runs a similarity search over the session's index.
func (s *Service) Search(ctx context.Context, id, query string, k int) ([]index.Hit, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hits, err := s.searcher.Search(ctx, sess.Index, query, k)
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *Service) observe(res analysis.Result, n int) analysis.Result {
	metrics.AnalysisBatchesTotal.WithLabelValues(res.Risk.Level).Inc()
	metrics.AnalysisBatchSize.Observe(float64(n))
	return res
}
