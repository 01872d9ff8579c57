package defectscope

import (
	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
)

type (
	// Complaint is one normalized complaint record.
	Complaint = complaint.Record
	// RawComplaint is a complaint as it arrives from a client, with loosely typed fields.
	RawComplaint = complaint.Raw
	// Analysis is the aggregate statistics of a batch.
	Analysis = analysis.Result
	// Hit is one ranked search result.
	Hit = index.Hit
	// EmbeddingSummary counts indexed, failed and skipped records.
	EmbeddingSummary = domsession.EmbeddingSummary
)

// DefaultK is the number of hits returned when Search is called with k <= 0.
const DefaultK = index.DefaultK

// Index is an immutable embedding index over one complaint batch.
type Index struct {
	idx     *index.Index
	summary EmbeddingSummary
}

// Len returns the number of indexed complaints.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return x.idx.Len()
}

// Summary reports which records were indexed and why the others were not.
func (x *Index) Summary() EmbeddingSummary {
	if x == nil {
		return EmbeddingSummary{Failures: []domsession.Failure{}}
	}
	return x.summary
}

// Normalize converts raw complaints into records, preserving order.
func Normalize(raws []RawComplaint) []Complaint {
	return complaint.NormalizeAll(raws)
}
