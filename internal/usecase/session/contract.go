package session

import (
	"context"

	"github.com/defectscope/defectscope/internal/domain/batch"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

// Repository persists sessions.
type Repository interface {
	Save(ctx context.Context, s *domsession.Session) error
	Get(ctx context.Context, id string) (*domsession.Session, error)
	Delete(ctx context.Context, id string) error
}

// ComplaintSource returns the complaints filed against one vehicle.
type ComplaintSource interface {
	Complaints(ctx context.Context, v vehicle.Vehicle) ([]complaint.Record, error)
}

// RecallSource returns the recall campaigns for one vehicle.
type RecallSource interface {
	Recalls(ctx context.Context, v vehicle.Vehicle) ([]recall.Recall, error)
}

// VINDecoder resolves a VIN into a vehicle.
type VINDecoder interface {
	DecodeVIN(ctx context.Context, vin string) (vehicle.Vehicle, error)
}

// IndexBuilder embeds a batch.
type IndexBuilder interface {
	Build(ctx context.Context, records []complaint.Record) (*index.Index, batch.Report)
}

// Searcher ranks an index against a query.
type Searcher interface {
	Search(ctx context.Context, idx *index.Index, query string, k int) ([]index.Hit, error)
}

// EventPublisher announces finished sessions.
type EventPublisher interface {
	AnalysisCompleted(ctx context.Context, s *domsession.Session) error
}
