// Package model defines domain types for physioevents sessions and event tables.
package model

import "strconv"

// TrialType is the canonical label written to the trial-type column.
type TrialType string

// Trial types produced by the PsychoPy log and the physio marker channels.
const (
	TrialHold          TrialType = "hold"
	TrialHoldTest      TrialType = "hold-test"
	TrialHoldEnd       TrialType = "hold-end"
	TrialHoldEndTest   TrialType = "hold-end-test"
	TrialBreathFreely  TrialType = "breath-freely"
	TrialBreathIn      TrialType = "breath-in"
	TrialBreathOut     TrialType = "breath-out"
	TrialBreathInLast  TrialType = "breath-in-last"
	TrialBreathOutLast TrialType = "breath-out-last"
	TrialCognitive     TrialType = "cog"
	TrialMotor         TrialType = "mot"
	TrialBlank         TrialType = "blank"
	TrialVisual        TrialType = "vis"
	TrialMovie         TrialType = "movie"
)

// Interval is the span between a keyword's activation and its next deactivation.
// Onset and Offset are raw log timestamps in seconds.
type Interval struct {
	Keyword   string
	Onset     float64
	Offset    float64
	OnsetLine int // 1-based line of the opening toggle
	CloseLine int // 1-based line of the closing toggle
}

// Duration returns Offset - Onset.
func (iv Interval) Duration() float64 {
	return iv.Offset - iv.Onset
}

// EventRecord is one row of a BIDS events table.
type EventRecord struct {
	Onset     float64
	Duration  float64
	TrialType TrialType
	Value     string
}

// EventTable is an ordered sequence of events for one session.
// Rows keep the order they were produced in; nothing re-sorts them.
type EventTable struct {
	Records []EventRecord

	// Precision is the number of decimals written for onset and duration.
	// A negative value writes the shortest representation.
	Precision int

	// HasValue reports whether the table carries the value column.
	HasValue bool
}

// Len returns the number of rows.
func (t EventTable) Len() int {
	return len(t.Records)
}

// Header returns the column names of the table.
func (t EventTable) Header() []string {
	if t.HasValue {
		return []string{"onset", "duration", "trial-type", "value"}
	}
	return []string{"onset", "duration", "trial-type"}
}

// Fields renders one record as table cells.
func (t EventTable) Fields(r EventRecord) []string {
	row := []string{
		FormatSeconds(r.Onset, t.Precision),
		FormatSeconds(r.Duration, t.Precision),
		string(r.TrialType),
	}
	if t.HasValue {
		row = append(row, r.Value)
	}
	return row
}

// Rows renders every record as table cells.
func (t EventTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records))
	for _, r := range t.Records {
		rows = append(rows, t.Fields(r))
	}
	return rows
}

// TrialTypes returns the distinct trial types in order of first appearance.
func (t EventTable) TrialTypes() []TrialType {
	seen := make(map[TrialType]struct{})
	var out []TrialType
	for _, r := range t.Records {
		if _, ok := seen[r.TrialType]; ok {
			continue
		}
		seen[r.TrialType] = struct{}{}
		out = append(out, r.TrialType)
	}
	return out
}

// CountByType returns how many rows each trial type has.
func (t EventTable) CountByType() map[TrialType]int {
	counts := make(map[TrialType]int)
	for _, r := range t.Records {
		counts[r.TrialType]++
	}
	return counts
}

// FormatSeconds formats v with the given number of decimals, or the
// shortest round-tripping form when decimals is negative.
func FormatSeconds(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// RoundTenth rounds v to one decimal the way %.1f does, so the stored value
// and its written form always agree.
func RoundTenth(v float64) float64 {
	return RoundTo(v, 1)
}

// RoundTo rounds v to the given number of decimals through its decimal form.
func RoundTo(v float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}
