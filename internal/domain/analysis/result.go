// Package analysis holds the summary statistics derived from one complaint batch.
package analysis

// Risk levels shown on the litigation banner.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

// Count is a label with its number of complaints.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// YearCount is the number of complaints whose failure happened in Year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Severity holds batch-wide totals.
type Severity struct {
	TotalComplaints int `json:"total_complaints"`
	Crashes         int `json:"crashes"`
	Injuries        int `json:"injuries"`
	Fires           int `json:"fires"`
	Deaths          int `json:"deaths"`
}

// ComponentSeverity holds severity sub-totals for one component.
type ComponentSeverity struct {
	Component string `json:"component"`
	Crashes   int    `json:"crashes"`
	Injuries  int    `json:"injuries"`
	Fires     int    `json:"fires"`
	Deaths    int    `json:"deaths"`
}

// Risk is the coarse litigation risk banner.
type Risk struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

// Result is the full aggregation over one batch. Slices are never nil.
type Result struct {
	ComponentCounts   []Count             `json:"component_counts"`
	Severity          Severity            `json:"severity"`
	StateCounts       []Count             `json:"state_counts"`
	YearlyTrend       []YearCount         `json:"yearly_trend"`
	ComponentSeverity []ComponentSeverity `json:"component_severity"`
	CaseStrengthScore float64             `json:"case_strength_score"`
	Risk              Risk                `json:"risk"`
}

// TopComponents returns at most n leading component counts.
func (r Result) TopComponents(n int) []Count {
	if n < 0 || n >= len(r.ComponentCounts) {
		return r.ComponentCounts
	}
	return r.ComponentCounts[:n]
}

// RiskFor scores severity totals into a risk banner.
func RiskFor(s Severity) Risk {
	score := 3*s.Crashes + 2*s.Injuries + 2*s.Fires + 5*s.Deaths
	switch {
	case score > 10:
		return Risk{Score: score, Level: RiskHigh}
	case score > 3:
		return Risk{Score: score, Level: RiskModerate}
	default:
		return Risk{Score: score, Level: RiskLow}
	}
}
