// Package complaint defines the normalized vehicle-safety complaint record
// and the coercion rules that turn loosely typed input into it.
package complaint

import (
	"strings"
	"time"
)

// Unknown replaces a blank component or state.
const Unknown = "UNKNOWN"

// Date layouts accepted for the failure date, most specific dataset format first.
var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Record is one normalized complaint. A zero Date means the failure date is unknown.
type Record struct {
	ComplaintID string    `json:"complaint_id"`
	Date        time.Time `json:"date"`
	Component   string    `json:"component"`
	Summary     string    `json:"summary"`
	State       string    `json:"state"`
	Crash       int       `json:"crash"`
	Fire        int       `json:"fire"`
	Injury      int       `json:"injury"`
	Death       int       `json:"death"`
}

// Year returns the calendar year of the failure date, false when unknown.
func (r Record) Year() (int, bool) {
	if r.Date.IsZero() {
		return 0, false
	}
	return r.Date.Year(), true
}

// Normalized applies the defaulting rules to an already typed record.
func (r Record) Normalized() Record {
	r.Component = orUnknown(r.Component)
	r.State = strings.ToUpper(orUnknown(r.State))
	r.Crash = clampFlag(r.Crash)
	r.Fire = clampFlag(r.Fire)
	r.Injury = max(r.Injury, 0)
	r.Death = max(r.Death, 0)
	return r
}

// Raw is a complaint as received, every field loosely typed.
type Raw struct {
	ComplaintID Value `json:"complaint_id"`
	Date        Value `json:"date"`
	Component   Value `json:"component"`
	Summary     Value `json:"summary"`
	State       Value `json:"state"`
	Crash       Value `json:"crash"`
	Fire        Value `json:"fire"`
	Injury      Value `json:"injury"`
	Death       Value `json:"death"`
}

// Normalize converts the raw fields into a Record. It never fails.
func (r Raw) Normalize() Record {
	return Record{
		ComplaintID: r.ComplaintID.String(),
		Date:        ParseDate(r.Date.String()),
		Component:   r.Component.String(),
		Summary:     r.Summary.String(),
		State:       r.State.String(),
		Crash:       r.Crash.Flag(),
		Fire:        r.Fire.Flag(),
		Injury:      r.Injury.Count(),
		Death:       r.Death.Count(),
	}.Normalized()
}

// NormalizeAll normalizes a batch preserving order.
func NormalizeAll(raws []Raw) []Record {
	out := make([]Record, len(raws))
	for i, r := range raws {
		out[i] = r.Normalize()
	}
	return out
}

// ParseDate tries every known layout and returns the zero time when none match.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

func clampFlag(n int) int {
	if n > 0 {
		return 1
	}
	return 0
}
