package chi

import (
	"context"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
	healthuc "github.com/defectscope/defectscope/internal/usecase/health"
	sessionuc "github.com/defectscope/defectscope/internal/usecase/session"
)

// Sessions is the session use case as seen by the HTTP layer.
type Sessions interface {
	Open(ctx context.Context, req sessionuc.OpenRequest) (*domsession.Session, error)
	Get(ctx context.Context, id string) (*domsession.Session, error)
	Close(ctx context.Context, id string) error
	Complaints(ctx context.Context, id, component string) ([]complaint.Record, error)
	Search(ctx context.Context, id, query string, k int) ([]index.Hit, error)
	Analyze(raws []complaint.Raw) analysis.Result
}

// Vehicles resolves VINs and looks up recalls.
type Vehicles interface {
	DecodeVIN(ctx context.Context, vin string) (vehicle.Vehicle, error)
	Recalls(ctx context.Context, v vehicle.Vehicle) ([]recall.Recall, error)
}

// Health reports component health.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}
