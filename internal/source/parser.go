// Package source discovers session files and turns PsychoPy logs and physio
// marker channels into events tables.
package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theaxonlab/physioevents/internal/model"
)

// LogResult holds the output of parsing a single PsychoPy log.
type LogResult struct {
	Source        string
	Trigger       float64
	TriggerSource string
	Table         model.EventTable

	// Dropped counts toggles that never formed an interval: deactivations
	// with nothing pending, replaced activations and activations left open.
	Dropped int
}

// ParseLogFile reads and parses the PsychoPy log at path.
func ParseLogFile(path string) (*LogResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // log paths come from the scanned session folder
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseLog(filepath.Base(path), string(data))
}

// ParseLog builds the events table of one PsychoPy log. source names the log
// in errors.
//
// Rows are emitted in the order their deactivation appears in the log. Onsets
// are relative to the first scanner trigger keypress, or to a task-specific
// substitute when the log has none. Onset and duration are rounded to 0.1 s.
func ParseLog(source, text string) (*LogResult, error) {
	lines := splitLines(text)

	trigger := newTriggerResolver(lines, source)
	toggles := scanToggles(lines)
	if len(toggles) == 0 && trigger.resolved {
		return nil, &PatternNotFoundError{Pattern: AutoDrawPattern, Source: source}
	}

	intervals, dropped := extractIntervals(toggles)
	ctx := &contextResolver{lines: lines, source: source}

	records := make([]model.EventRecord, 0, len(intervals))
	for _, iv := range intervals {
		tt, ok := Lookup(iv.Keyword)
		if !ok {
			// autoDrawPattern only admits vocabulary keywords.
			continue
		}

		value, err := ctx.value(iv, tt)
		if err != nil {
			return nil, err
		}

		zero, err := trigger.resolve(iv, tt)
		if err != nil {
			return nil, err
		}

		records = append(records, model.EventRecord{
			Onset:     model.RoundTenth(iv.Onset - zero),
			Duration:  model.RoundTenth(iv.Duration()),
			TrialType: tt,
			Value:     value,
		})
	}

	if !trigger.resolved {
		return nil, &PatternNotFoundError{Pattern: TriggerPattern, Source: source}
	}

	return &LogResult{
		Source:        source,
		Trigger:       trigger.value,
		TriggerSource: trigger.from,
		Table: model.EventTable{
			Records:   records,
			Precision: 1,
			HasValue:  true,
		},
		Dropped: dropped,
	}, nil
}
