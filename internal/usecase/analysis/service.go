// Package analysis implements the deterministic aggregation pipeline over a complaint batch.
package analysis

import (
	"math"
	"sort"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
)

// Case strength weights per severity unit.
const (
	injuryWeight    = 5
	crashWeight     = 3
	fireWeight      = 2
	deathWeight     = 10
	complaintWeight = 0.01
)

// Analyze aggregates a batch. It is pure: no I/O, same input gives the same output.
// Ordered outputs break count ties by first appearance in the batch.
func Analyze(records []complaint.Record) analysis.Result {
	components := newCounter()
	states := newCounter()
	years := make(map[int]int)
	perComponent := make(map[string]*analysis.ComponentSeverity)
	var sev analysis.Severity

	for _, raw := range records {
		r := raw.Normalized()

		components.add(r.Component)
		states.add(r.State)

		sev.TotalComplaints++
		sev.Crashes += r.Crash
		sev.Injuries += r.Injury
		sev.Fires += r.Fire
		sev.Deaths += r.Death

		cs, ok := perComponent[r.Component]
		if !ok {
			cs = &analysis.ComponentSeverity{Component: r.Component}
			perComponent[r.Component] = cs
		}
		cs.Crashes += r.Crash
		cs.Injuries += r.Injury
		cs.Fires += r.Fire
		cs.Deaths += r.Death

		if y, ok := r.Year(); ok {
			years[y]++
		}
	}

	componentCounts := components.sorted()
	componentSeverity := make([]analysis.ComponentSeverity, 0, len(componentCounts))
	for _, c := range componentCounts {
		componentSeverity = append(componentSeverity, *perComponent[c.Label])
	}

	return analysis.Result{
		ComponentCounts:   componentCounts,
		Severity:          sev,
		StateCounts:       states.sorted(),
		YearlyTrend:       yearlyTrend(years),
		ComponentSeverity: componentSeverity,
		CaseStrengthScore: CaseStrength(sev),
		Risk:              analysis.RiskFor(sev),
	}
}

// CaseStrength computes the weighted severity score rounded to two decimals.
func CaseStrength(s analysis.Severity) float64 {
	score := float64(injuryWeight*s.Injuries+crashWeight*s.Crashes+fireWeight*s.Fires+deathWeight*s.Deaths) +
		complaintWeight*float64(s.TotalComplaints)
	return math.Round(score*100) / 100
}

func yearlyTrend(years map[int]int) []analysis.YearCount {
	out := make([]analysis.YearCount, 0, len(years))
	for y, n := range years {
		out = append(out, analysis.YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// counter tallies labels and remembers the order they first appeared in.
type counter struct {
	index  map[string]int
	counts []analysis.Count
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(label string) {
	i, ok := c.index[label]
	if !ok {
		i = len(c.counts)
		c.index[label] = i
		c.counts = append(c.counts, analysis.Count{Label: label})
	}
	c.counts[i].Count++
}

// sorted returns counts descending; SliceStable keeps first-appearance order on ties.
func (c *counter) sorted() []analysis.Count {
	out := make([]analysis.Count, len(c.counts))
	copy(out, c.counts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
