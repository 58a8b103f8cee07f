package pipeline

import (
	"testing"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
)

func rec(onset, duration float64, tt model.TrialType) model.EventRecord {
	return model.EventRecord{Onset: onset, Duration: duration, TrialType: tt}
}

func TestCheck_BreathHoldingPasses(t *testing.T) {
	table := model.EventTable{Records: []model.EventRecord{
		rec(153.0, 2.7, model.TrialBreathIn),
		rec(155.7, 2.3, model.TrialBreathOut),
		rec(158.0, 2.7, model.TrialBreathInLast),
		rec(160.7, 2.3, model.TrialBreathOutLast),
		rec(163.0, 13.0, model.TrialHold),
		rec(176.0, 2.0, model.TrialHoldEnd),
		rec(178.0, 5.0, model.TrialBreathFreely),
	}}

	report := Check("bht.log", table, model.TaskBreathHolding, config.DefaultConfig().Checks)
	if !report.Passed() {
		t.Errorf("violations: %+v", report.Violations)
	}
	if report.Rows != 7 {
		t.Errorf("Rows = %d, want 7", report.Rows)
	}
}

func TestCheck_Violations(t *testing.T) {
	tests := []struct {
		name  string
		task  model.Task
		table []model.EventRecord
		rule  string
		row   int
	}{
		{
			name:  "duration off",
			task:  model.TaskUnknown,
			table: []model.EventRecord{rec(0, 3.3, model.TrialBlank)},
			rule:  RuleDuration,
		},
		{
			name:  "first onset",
			task:  model.TaskQualityControl,
			table: []model.EventRecord{rec(290.0, 3.0, model.TrialVisual)},
			rule:  RuleFirstOnset,
		},
		{
			name:  "movie late",
			task:  model.TaskUnknown,
			table: []model.EventRecord{rec(2.0, 1200, model.TrialMovie)},
			rule:  RuleMovieOnset,
		},
		{
			name: "wrong predecessor",
			task: model.TaskUnknown,
			table: []model.EventRecord{
				rec(0, 2.7, model.TrialBreathIn),
				rec(2.7, 13, model.TrialHold),
			},
			rule: RulePrecede,
			row:  1,
		},
		{
			name: "repetition",
			task: model.TaskUnknown,
			table: []model.EventRecord{
				rec(0, 5, model.TrialMotor),
				rec(5, 3, model.TrialBlank),
				rec(8, 3, model.TrialBlank),
				rec(11, 5, model.TrialMotor),
			},
			rule: RuleRepetition,
			row:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Check("x.log", model.EventTable{Records: tt.table}, tt.task, config.DefaultConfig().Checks)
			if len(report.Violations) != 1 {
				t.Fatalf("violations = %+v, want exactly one", report.Violations)
			}
			v := report.Violations[0]
			if v.Rule != tt.rule || v.Row != tt.row {
				t.Errorf("violation = %+v, want rule %s row %d", v, tt.rule, tt.row)
			}
		})
	}
}

func TestCheck_Tolerance(t *testing.T) {
	table := model.EventTable{Records: []model.EventRecord{rec(0, 3.1, model.TrialBlank)}}
	if r := Check("x.log", table, model.TaskUnknown, config.DefaultConfig().Checks); !r.Passed() {
		t.Errorf("3.1 s blank should be within 0.1 s: %+v", r.Violations)
	}
}
