package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
)

// Check rule names reported on violations.
const (
	RuleDuration   = "duration"
	RuleFirstOnset = "first-onset"
	RuleMovieOnset = "movie-onset"
	RulePrecede    = "precede"
	RuleRepetition = "repetition"
)

// Check verifies an events table against the protocol expectations of task.
func Check(name string, t model.EventTable, task model.Task, cfg config.ChecksConfig) model.CheckReport {
	report := model.CheckReport{
		Session: name,
		Task:    task,
		Rows:    t.Len(),
	}

	add := func(rule string, row int, tt model.TrialType, format string, args ...any) {
		report.Violations = append(report.Violations, model.Violation{
			Rule:      rule,
			Row:       row,
			TrialType: tt,
			Detail:    fmt.Sprintf(format, args...),
		})
	}

	near := func(got, want float64) bool {
		return math.Abs(got-want) <= cfg.Tolerance+1e-9
	}

	for i, r := range t.Records {
		if want, ok := cfg.Durations[string(r.TrialType)]; ok && !near(r.Duration, want) {
			add(RuleDuration, i, r.TrialType, "duration %.1f, expected %.1f", r.Duration, want)
		}
		if r.TrialType == model.TrialMovie && !near(r.Onset, 0) {
			add(RuleMovieOnset, i, r.TrialType, "movie starts at %.1f, expected 0.0", r.Onset)
		}
		if i == 0 {
			continue
		}
		if want, ok := cfg.Precede[string(r.TrialType)]; ok {
			if prev := t.Records[i-1].TrialType; string(prev) != want {
				add(RulePrecede, i, r.TrialType, "preceded by %s, expected %s", prev, want)
			}
		}
	}

	if want, ok := cfg.FirstOnset[string(task)]; ok && t.Len() > 0 {
		if got := t.Records[0].Onset; !near(got, want) {
			add(RuleFirstOnset, 0, t.Records[0].TrialType, "first event at %.1f, expected %.1f", got, want)
		}
	}

	report.Violations = append(report.Violations, checkRepetition(t, cfg.Repetition)...)
	sort.SliceStable(report.Violations, func(i, j int) bool {
		return report.Violations[i].Row < report.Violations[j].Row
	})

	return report
}

// checkRepetition verifies that successive rows of a trial type are a fixed
// number of rows apart.
func checkRepetition(t model.EventTable, spacing map[string]int) []model.Violation {
	var out []model.Violation

	types := make([]string, 0, len(spacing))
	for tt := range spacing {
		types = append(types, tt)
	}
	sort.Strings(types)

	for _, tt := range types {
		want := spacing[tt]
		last := -1
		for i, r := range t.Records {
			if string(r.TrialType) != tt {
				continue
			}
			if last >= 0 && i-last != want {
				out = append(out, model.Violation{
					Rule:      RuleRepetition,
					Row:       i,
					TrialType: r.TrialType,
					Detail:    fmt.Sprintf("%d rows after the previous %s, expected %d", i-last, tt, want),
				})
			}
			last = i
		}
	}
	return out
}
