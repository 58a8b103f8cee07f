package source

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/theaxonlab/physioevents/internal/model"
)

// logText joins PsychoPy log lines the way the runner writes them.
func logText(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func mustParse(t *testing.T, text string) *LogResult {
	t.Helper()
	res, err := ParseLog("test.log", text)
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	return res
}

func TestParseLog_FixationRelativeToTrigger(t *testing.T) {
	res := mustParse(t, logText(
		"85.0000 \tDATA \tKeypress: space",
		"90.0000 \tDATA \tKeypress: s",
		"91.0000 \tDATA \tKeypress: s",
		"100.0000 \tEXP \tfixation: autoDraw = True",
		"103.0000 \tEXP \tfixation: autoDraw = False",
	))

	if res.Trigger != 90.0 {
		t.Errorf("Trigger = %v, want 90.0 (space and later pulses ignored)", res.Trigger)
	}
	if res.TriggerSource != TriggerKeypress {
		t.Errorf("TriggerSource = %q, want %q", res.TriggerSource, TriggerKeypress)
	}

	want := []model.EventRecord{{Onset: 10.0, Duration: 3.0, TrialType: model.TrialBlank}}
	if !reflect.DeepEqual(res.Table.Records, want) {
		t.Errorf("Records = %+v, want %+v", res.Table.Records, want)
	}
	if got := res.Table.Fields(res.Table.Records[0]); !reflect.DeepEqual(got, []string{"10.0", "3.0", "blank", ""}) {
		t.Errorf("Fields = %q", got)
	}
}

func TestParseLog_MotorHand(t *testing.T) {
	res := mustParse(t, logText(
		"40.0000 \tDATA \tKeypress: s",
		"150.1234 \tEXP \tft_hand: text = 'LEFT'",
		"50.1234 \tEXP \tft_hand: text = 'RIGHT'",
		"50.1234 \tEXP \tft_hand: autoDraw = True",
		"55.1234 \tEXP \tft_hand: autoDraw = False",
	))

	if len(res.Table.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Table.Records))
	}
	r := res.Table.Records[0]
	if r.TrialType != model.TrialMotor || r.Value != "right" {
		t.Errorf("record = %+v, want mot/right", r)
	}
	if r.Onset != 10.1 || r.Duration != 5.0 {
		t.Errorf("onset/duration = %v/%v, want 10.1/5.0", r.Onset, r.Duration)
	}
}

func TestParseLog_MotorWithoutHand(t *testing.T) {
	_, err := ParseLog("test.log", logText(
		"40.0000 \tDATA \tKeypress: s",
		"50.1234 \tEXP \tft_hand: autoDraw = True",
		"55.1234 \tEXP \tft_hand: autoDraw = False",
	))
	if !errors.Is(err, ErrPatternNotFound) {
		t.Fatalf("err = %v, want ErrPatternNotFound", err)
	}
}

func cogLog(window ...string) string {
	lines := []string{"10.0000 \tDATA \tKeypress: s"}
	lines = append(lines, window...)
	lines = append(lines,
		"60.5000 \tEXP \teye_movement_fixation: autoDraw = True",
		"61.0000 \tEXP \teye_movement_fixation: autoDraw = False",
	)
	return logText(lines...)
}

const trialDecl = "60.0000 \tEXP \tNew trial (rep=0, index=3): OrderedDict([('xpos', 0.5), ('ypos', -0.25)])"

func TestParseLog_CognitiveFixation(t *testing.T) {
	res := mustParse(t, cogLog(
		trialDecl,
		"60.0100 \tEXP \tfilling 1",
		"60.0200 \tEXP \tfilling 2",
		"60.0300 \tEXP \tfilling 3",
		"60.0400 \tEXP \tfilling 4",
		"60.0500 \tEXP \tfilling 5",
	))

	want := []model.EventRecord{{Onset: 50.5, Duration: 0.5, TrialType: model.TrialCognitive, Value: "[0.5, -0.25]"}}
	if !reflect.DeepEqual(res.Table.Records, want) {
		t.Errorf("Records = %+v, want %+v", res.Table.Records, want)
	}
}

func TestParseLog_CognitiveAmbiguous(t *testing.T) {
	tests := []struct {
		name    string
		window  []string
		matches int
	}{
		{"none", []string{"60.0100 \tEXP \tfilling"}, 0},
		{"two", []string{trialDecl, trialDecl}, 2},
		{"outside window", []string{
			trialDecl,
			"60.0100 \tEXP \tfilling 1",
			"60.0200 \tEXP \tfilling 2",
			"60.0300 \tEXP \tfilling 3",
			"60.0400 \tEXP \tfilling 4",
			"60.0500 \tEXP \tfilling 5",
			"60.0600 \tEXP \tfilling 6",
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLog("test.log", cogLog(tt.window...))
			var ace *AmbiguousContextError
			if !errors.As(err, &ace) {
				t.Fatalf("err = %v, want AmbiguousContextError", err)
			}
			if ace.Matches != tt.matches {
				t.Errorf("Matches = %d, want %d", ace.Matches, tt.matches)
			}
			if !errors.Is(err, ErrAmbiguousContext) {
				t.Error("errors.Is(err, ErrAmbiguousContext) = false")
			}
		})
	}
}

func TestParseLog_CognitiveIgnoresPreviousTrial(t *testing.T) {
	// The previous trial's declaration sits seven lines above the onset,
	// just outside the window.
	res := mustParse(t, cogLog(
		"59.0000 \tEXP \tNew trial (rep=0, index=2): OrderedDict([('xpos', -0.5), ('ypos', 0.25)])",
		trialDecl,
		"60.0100 \tEXP \tfilling 1",
		"60.0200 \tEXP \tfilling 2",
		"60.0300 \tEXP \tfilling 3",
		"60.0400 \tEXP \tfilling 4",
		"60.0500 \tEXP \tfilling 5",
	))

	if got := res.Table.Records[0].Value; got != "[0.5, -0.25]" {
		t.Errorf("Value = %q, want [0.5, -0.25]", got)
	}
}

func TestParseLog_CognitiveNearFileStart(t *testing.T) {
	res := mustParse(t, logText(
		trialDecl,
		"60.5000 \tEXP \teye_movement_fixation: autoDraw = True",
		"61.0000 \tEXP \teye_movement_fixation: autoDraw = False",
		"70.0000 \tDATA \tKeypress: s",
	))
	if got := res.Table.Records[0].Value; got != "[0.5, -0.25]" {
		t.Errorf("Value = %q, want [0.5, -0.25]", got)
	}
	if got := res.Table.Records[0].Onset; got != -9.5 {
		t.Errorf("Onset = %v, want -9.5", got)
	}
}

func TestParseLog_TriggerFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		from   string
		record model.EventRecord
	}{
		{
			name: "movie",
			lines: []string{
				"12.5000 \tEXP \tmovie: autoDraw = True",
				"1212.5000 \tEXP \tmovie: autoDraw = False",
			},
			from:   TriggerMovie,
			record: model.EventRecord{Onset: 0.0, Duration: 1200.0, TrialType: model.TrialMovie},
		},
		{
			name: "eyetracker",
			lines: []string{
				"5.0000 \tEXP \teyetracker.clearEvents()",
				"10.0000 \tEXP \tgrating: autoDraw = True",
				"13.0000 \tEXP \tgrating: autoDraw = False",
			},
			from:   TriggerEyetracker,
			record: model.EventRecord{Onset: 5.0, Duration: 3.0, TrialType: model.TrialVisual},
		},
		{
			name: "cue dismissed",
			lines: []string{
				"20.0000 \tEXP \ttext_2: autoDraw = False",
				"25.0000 \tEXP \tpolygon_4: autoDraw = True",
				"27.7000 \tEXP \tpolygon_4: autoDraw = False",
			},
			from:   TriggerCue,
			record: model.EventRecord{Onset: 5.0, Duration: 2.7, TrialType: model.TrialBreathIn},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustParse(t, logText(tt.lines...))
			if res.TriggerSource != tt.from {
				t.Errorf("TriggerSource = %q, want %q", res.TriggerSource, tt.from)
			}
			if len(res.Table.Records) != 1 || res.Table.Records[0] != tt.record {
				t.Errorf("Records = %+v, want [%+v]", res.Table.Records, tt.record)
			}
		})
	}
}

func TestParseLog_TriggerFixedOnceDerived(t *testing.T) {
	res := mustParse(t, logText(
		"5.0000 \tEXP \teyetracker.clearEvents()",
		"10.0000 \tEXP \tgrating: autoDraw = True",
		"13.0000 \tEXP \tgrating: autoDraw = False",
		"30.0000 \tEXP \teyetracker.clearEvents()",
		"40.0000 \tEXP \tfixation: autoDraw = True",
		"43.0000 \tEXP \tfixation: autoDraw = False",
	))
	if got := res.Table.Records[1].Onset; got != 35.0 {
		t.Errorf("second onset = %v, want 35.0", got)
	}
}

func TestParseLog_MissingPatterns(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		pattern  string
		fallback string
	}{
		{
			name:    "no trigger and no intervals",
			lines:   []string{"1.0000 \tEXP \tsomething else"},
			pattern: TriggerPattern,
		},
		{
			name: "quality control fallback missing",
			lines: []string{
				"10.0000 \tEXP \tfixation: autoDraw = True",
				"13.0000 \tEXP \tfixation: autoDraw = False",
			},
			pattern:  TriggerPattern,
			fallback: eyetrackerPattern.String(),
		},
		{
			name: "breath-holding fallback missing",
			lines: []string{
				"10.0000 \tEXP \tbh_body_2: autoDraw = True",
				"25.0000 \tEXP \tbh_body_2: autoDraw = False",
			},
			pattern:  TriggerPattern,
			fallback: cueDismissPattern.String(),
		},
		{
			name: "trigger but no toggles",
			lines: []string{
				"10.0000 \tDATA \tKeypress: s",
				"11.0000 \tEXP \teye_movement_fixation_inner: autoDraw = True",
				"12.0000 \tEXP \tpolygon: autoDraw = False",
			},
			pattern: AutoDrawPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseLog("aborted.log", logText(tt.lines...))
			if res != nil {
				t.Errorf("got a result on failure: %+v", res)
			}
			var pnf *PatternNotFoundError
			if !errors.As(err, &pnf) {
				t.Fatalf("err = %v, want PatternNotFoundError", err)
			}
			if pnf.Pattern != tt.pattern {
				t.Errorf("Pattern = %q, want %q", pnf.Pattern, tt.pattern)
			}
			if pnf.Fallback != tt.fallback {
				t.Errorf("Fallback = %q, want %q", pnf.Fallback, tt.fallback)
			}
			if !strings.Contains(err.Error(), "aborted.log") {
				t.Errorf("error %q does not name the input", err)
			}
		})
	}
}

func TestParseLog_PairingRules(t *testing.T) {
	res := mustParse(t, logText(
		"90.0000 \tDATA \tKeypress: s",
		"95.0000 \tEXP \tfixation: autoDraw = False",
		"100.0000 \tEXP \tgrating: autoDraw = True",
		"100.5000 \tEXP \tfixation: autoDraw = True",
		"101.0000 \tEXP \tfixation: autoDraw = True",
		"102.0000 \tEXP \tfixation: autoDraw = False",
		"103.0000 \tEXP \tgrating: autoDraw = False",
		"104.0000 \tEXP \tgrating: autoDraw = maybe",
	))

	want := []model.EventRecord{
		{Onset: 11.0, Duration: 1.0, TrialType: model.TrialBlank},
		{Onset: 10.0, Duration: 3.0, TrialType: model.TrialVisual},
	}
	if !reflect.DeepEqual(res.Table.Records, want) {
		t.Errorf("Records = %+v, want %+v", res.Table.Records, want)
	}
	// Unmatched deactivation and overwritten activation.
	if res.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", res.Dropped)
	}
}

func TestParseLog_BreathOutLastManyToOne(t *testing.T) {
	res := mustParse(t, logText(
		"10.0000 \tDATA \tKeypress: s",
		"20.0000 \tEXP \tpolygon_7: autoDraw = True",
		"22.3000 \tEXP \tpolygon_7: autoDraw = False",
		"30.0000 \tEXP \tpolygon_8: autoDraw = True",
		"32.3000 \tEXP \tpolygon_8: autoDraw = False",
	))
	for _, r := range res.Table.Records {
		if r.TrialType != model.TrialBreathOutLast {
			t.Errorf("TrialType = %q, want breath-out-last", r.TrialType)
		}
	}
	if len(res.Table.Records) != 2 {
		t.Errorf("got %d records, want 2", len(res.Table.Records))
	}
}

func TestParseLog_RoundsHalfToEven(t *testing.T) {
	res := mustParse(t, logText(
		"90.0000 \tDATA \tKeypress: s",
		"90.2500 \tEXP \tfixation: autoDraw = True",
		"93.2500 \tEXP \tfixation: autoDraw = False",
	))
	if got := res.Table.Fields(res.Table.Records[0])[0]; got != "0.2" {
		t.Errorf("onset = %q, want 0.2", got)
	}
}

func TestParseLog_DanglingActivationIgnored(t *testing.T) {
	text := logText(
		"90.0000 \tDATA \tKeypress: s",
		"100.0000 \tEXP \tfixation: autoDraw = True",
		"103.0000 \tEXP \tfixation: autoDraw = False",
		"110.0000 \tEXP \tgrating: autoDraw = True",
		"113.0000 \tEXP \tgrating: autoDraw = False",
	)
	base := mustParse(t, text)
	again := mustParse(t, text)
	if !reflect.DeepEqual(base.Table, again.Table) {
		t.Fatal("parsing the same log twice gave different tables")
	}

	for _, kw := range Keywords() {
		extended := mustParse(t, text+"200.0000 \tEXP \t"+kw+": autoDraw = True\n")
		if !reflect.DeepEqual(base.Table, extended.Table) {
			t.Errorf("trailing %s activation changed the table", kw)
		}
	}
}

func TestParseLog_CRLF(t *testing.T) {
	text := strings.ReplaceAll(logText(
		"90.0000 \tDATA \tKeypress: s",
		"50.1234 \tEXP \tft_hand: text = 'LEFT'",
		"50.1234 \tEXP \tft_hand: autoDraw = True",
		"55.1234 \tEXP \tft_hand: autoDraw = False",
	), "\n", "\r\n")
	res := mustParse(t, text)
	if got := res.Table.Records[0].Value; got != "left" {
		t.Errorf("Value = %q, want left", got)
	}
}

func TestParseLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub-001_ses-001_task-qct.log")
	text := logText(
		"90.0000 \tDATA \tKeypress: s",
		"100.0000 \tEXP \tfixation: autoDraw = True",
		"103.0000 \tEXP \tfixation: autoDraw = False",
	)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := ParseLogFile(path)
	if err != nil {
		t.Fatalf("ParseLogFile: %v", err)
	}
	if res.Source != "sub-001_ses-001_task-qct.log" {
		t.Errorf("Source = %q", res.Source)
	}
	if res.Table.Len() != 1 {
		t.Errorf("Len = %d, want 1", res.Table.Len())
	}

	if _, err := ParseLogFile(filepath.Join(dir, "missing.log")); err == nil {
		t.Error("expected error for missing file")
	}
}

func FuzzParseLog(f *testing.F) {
	f.Add(logText(
		"90.0000 \tDATA \tKeypress: s",
		"100.0000 \tEXP \tfixation: autoDraw = True",
		"103.0000 \tEXP \tfixation: autoDraw = False",
	))
	f.Add(cogLog(trialDecl))
	f.Add("12.5 EXP movie: autoDraw = True\n1212.5 EXP movie: autoDraw = False")
	f.Add("")

	f.Fuzz(func(t *testing.T, text string) {
		res, err := ParseLog("fuzz.log", text)
		if err != nil {
			if res != nil {
				t.Fatal("result returned alongside an error")
			}
			return
		}
		if got, max := res.Table.Len(), len(scanToggles(splitLines(text))); got > max/2 {
			t.Fatalf("%d records from %d toggles", got, max)
		}
	})
}
