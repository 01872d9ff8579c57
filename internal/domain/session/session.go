// Package session holds the state of one vehicle analysis between requests.
package session

import (
	"time"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/batch"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

// Session is one analysed vehicle. It is replaced, never updated, when a new vehicle is analysed.
type Session struct {
	ID           string
	VIN          string
	Vehicle      vehicle.Vehicle
	Complaints   []complaint.Record
	Recalls      []recall.Recall
	RecallsError string
	Analysis     analysis.Result
	Index        *index.Index
	Embeddings   EmbeddingSummary
	CreatedAt    time.Time
}

// Failure describes a record that did not make it into the index.
type Failure struct {
	Position    int    `json:"position"`
	ComplaintID string `json:"complaint_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

// EmbeddingSummary is the serializable outcome of an index build.
type EmbeddingSummary struct {
	Indexed  int       `json:"indexed"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures"`
}

// Summarize flattens a build report.
func Summarize(r batch.Report) EmbeddingSummary {
	fails := r.Failures()
	out := EmbeddingSummary{
		Indexed:  r.Count(batch.StatusOK),
		Failed:   r.Count(batch.StatusError),
		Skipped:  r.Count(batch.StatusSkipped),
		Failures: make([]Failure, 0, len(fails)),
	}
	for _, f := range fails {
		reason := ""
		if f.Err() != nil {
			reason = f.Err().Error()
		}
		out.Failures = append(out.Failures, Failure{
			Position:    f.Position(),
			ComplaintID: f.ID(),
			Status:      string(f.Status()),
			Reason:      reason,
		})
	}
	return out
}

// Searchable reports whether the session has any embedded complaints.
func (s *Session) Searchable() bool {
	return s != nil && s.Index.Len() > 0
}
