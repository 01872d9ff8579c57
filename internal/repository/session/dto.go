package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

// payload is the stored JSON form of a session. Index entries carry their vectors.
type payload struct {
	ID           string                      `json:"id"`
	VIN          string                      `json:"vin,omitempty"`
	Vehicle      vehicle.Vehicle             `json:"vehicle"`
	Complaints   []complaint.Record          `json:"complaints"`
	Recalls      []recall.Recall             `json:"recalls"`
	RecallsError string                      `json:"recalls_error,omitempty"`
	Analysis     analysis.Result             `json:"analysis"`
	Entries      []index.Entry               `json:"entries"`
	Embeddings   domsession.EmbeddingSummary `json:"embeddings"`
	CreatedAt    time.Time                   `json:"created_at"`
}

func encode(s *domsession.Session) ([]byte, error) {
	p := payload{
		ID:           s.ID,
		VIN:          s.VIN,
		Vehicle:      s.Vehicle,
		Complaints:   s.Complaints,
		Recalls:      s.Recalls,
		RecallsError: s.RecallsError,
		Analysis:     s.Analysis,
		Entries:      s.Index.Entries(),
		Embeddings:   s.Embeddings,
		CreatedAt:    s.CreatedAt,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*domsession.Session, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if p.Complaints == nil {
		p.Complaints = []complaint.Record{}
	}
	if p.Recalls == nil {
		p.Recalls = []recall.Recall{}
	}
	return &domsession.Session{
		ID:           p.ID,
		VIN:          p.VIN,
		Vehicle:      p.Vehicle,
		Complaints:   p.Complaints,
		Recalls:      p.Recalls,
		RecallsError: p.RecallsError,
		Analysis:     p.Analysis,
		Index:        index.New(p.Entries),
		Embeddings:   p.Embeddings,
		CreatedAt:    p.CreatedAt,
	}, nil
}
