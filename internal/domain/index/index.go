// Package index holds an immutable set of embedded complaints and ranks them by cosine similarity.
package index

import (
	"math"
	"sort"

	"github.com/defectscope/defectscope/internal/domain/complaint"
)

// DefaultK is the number of hits returned when the caller does not ask for a count.
const DefaultK = 5

// Entry pairs a record with its embedding. Position is the record's index in the analysed batch.
type Entry struct {
	Position int              `json:"position"`
	Record   complaint.Record `json:"record"`
	Vector   []float32        `json:"vector"`
}

// Hit is one ranked search result. Score is rounded to three decimals for display.
type Hit struct {
	Position int              `json:"position"`
	Record   complaint.Record `json:"record"`
	Score    float64          `json:"score"`
}

// Index is built once per batch and never mutated. A new batch gets a new Index.
type Index struct {
	entries []Entry
}

// New creates an index over entries ordered by Position. The slice is copied.
func New(entries []Entry) *Index {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Position < cp[j].Position })
	return &Index{entries: cp}
}

// Len returns the number of embedded records. A nil index is empty.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Entries returns a copy of the entries in position order.
func (x *Index) Entries() []Entry {
	if x == nil {
		return nil
	}
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Rank scores every entry against query and returns the top k.
// k <= 0 selects DefaultK; k larger than the index returns every entry.
// Equal scores keep position order.
func (x *Index) Rank(query []float32, k int) []Hit {
	n := x.Len()
	if n == 0 {
		return []Hit{}
	}
	if k <= 0 {
		k = DefaultK
	}
	k = min(k, n)

	type scored struct {
		i     int
		score float64
	}
	all := make([]scored, n)
	for i, e := range x.entries {
		all[i] = scored{i: i, score: CosineSimilarity(query, e.Vector)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	hits := make([]Hit, k)
	for i := range hits {
		e := x.entries[all[i].i]
		hits[i] = Hit{Position: e.Position, Record: e.Record, Score: round3(all[i].score)}
	}
	return hits
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|) clamped to [-1, 1].
// Zero-magnitude or mismatched vectors score -1, the least similar value.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return -1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
