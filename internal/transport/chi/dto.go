package chi

import (
	"time"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

// ErrorCode is the machine-readable error code in error responses.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNoData           ErrorCode = "no_data"
	CodeSessionNotFound  ErrorCode = "session_not_found"
	CodeVINNotFound      ErrorCode = "vin_not_found"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeEmbeddingError   ErrorCode = "embedding_provider_error"
	CodeUpstreamError    ErrorCode = "upstream_error"
	CodeInternalError    ErrorCode = "internal_error"
)

// topComponentsShown matches the dashboard bar chart.
const topComponentsShown = 10

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type analyzeRequest struct {
	Records []complaint.Raw `json:"records"`
}

type openSessionRequest struct {
	VIN   string `json:"vin"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

type complaintRow struct {
	ComplaintID string  `json:"complaint_id"`
	Date        *string `json:"date"`
	Component   string  `json:"component"`
	Summary     string  `json:"summary"`
	State       string  `json:"state"`
	Crash       int     `json:"crash"`
	Fire        int     `json:"fire"`
	Injury      int     `json:"injury"`
	Death       int     `json:"death"`
}

type complaintListResponse struct {
	Items []complaintRow `json:"items"`
	Total int            `json:"total"`
}

type hitResponse struct {
	Position  int          `json:"position"`
	Score     float64      `json:"score"`
	Complaint complaintRow `json:"complaint"`
}

type searchResponse struct {
	Query string        `json:"query"`
	Items []hitResponse `json:"items"`
	Total int           `json:"total"`
}

type sessionResponse struct {
	ID            string                      `json:"id"`
	VIN           string                      `json:"vin,omitempty"`
	Vehicle       vehicle.Vehicle             `json:"vehicle"`
	CreatedAt     time.Time                   `json:"created_at"`
	Complaints    int                         `json:"complaints"`
	Analysis      analysis.Result             `json:"analysis"`
	TopComponents []analysis.Count            `json:"top_components"`
	Recalls       []recall.Recall             `json:"recalls"`
	RecallsError  string                      `json:"recalls_error,omitempty"`
	Embeddings    domsession.EmbeddingSummary `json:"embeddings"`
	Searchable    bool                        `json:"searchable"`
}

type recallListResponse struct {
	Vehicle vehicle.Vehicle `json:"vehicle"`
	Items   []recall.Recall `json:"items"`
	Total   int             `json:"total"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func complaintToRow(r complaint.Record) complaintRow {
	row := complaintRow{
		ComplaintID: r.ComplaintID,
		Component:   r.Component,
		Summary:     r.Summary,
		State:       r.State,
		Crash:       r.Crash,
		Fire:        r.Fire,
		Injury:      r.Injury,
		Death:       r.Death,
	}
	if !r.Date.IsZero() {
		d := r.Date.Format(time.DateOnly)
		row.Date = &d
	}
	return row
}

func sessionToResponse(s *domsession.Session) sessionResponse {
	return sessionResponse{
		ID:            s.ID,
		VIN:           s.VIN,
		Vehicle:       s.Vehicle,
		CreatedAt:     s.CreatedAt,
		Complaints:    len(s.Complaints),
		Analysis:      s.Analysis,
		TopComponents: s.Analysis.TopComponents(topComponentsShown),
		Recalls:       s.Recalls,
		RecallsError:  s.RecallsError,
		Embeddings:    s.Embeddings,
		Searchable:    s.Searchable(),
	}
}

func hitsToResponse(query string, hits []index.Hit) searchResponse {
	items := make([]hitResponse, len(hits))
	for i, h := range hits {
		items[i] = hitResponse{Position: h.Position, Score: h.Score, Complaint: complaintToRow(h.Record)}
	}
	return searchResponse{Query: query, Items: items, Total: len(items)}
}
