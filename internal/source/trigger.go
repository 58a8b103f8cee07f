package source

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/theaxonlab/physioevents/internal/model"
)

// Trigger sources recorded on LogResult.TriggerSource.
const (
	TriggerKeypress   = "keypress"
	TriggerMovie      = "movie"
	TriggerEyetracker = "eyetracker"
	TriggerCue        = "text_2"
)

// Patterns for the fMRI trigger and its fallbacks. The scanner sends an "s"
// keypress on every volume; the first one marks the start of the acquisition.
var (
	triggerPattern    = regexp.MustCompile(`^\s*([\d.]+)\s+DATA\s+Keypress:\s+s\b`)
	eyetrackerPattern = regexp.MustCompile(`^\s*(\d+\.\d+)\s+EXP\s+eyetracker\.clearEvents\(\)`)
	cueDismissPattern = regexp.MustCompile(`^\s*(\d+\.\d+)\s+EXP\s+text_2: autoDraw = False`)
)

// TriggerPattern is the pattern named when no trigger can be resolved.
var TriggerPattern = triggerPattern.String()

// splitLines splits log text into lines, dropping carriage returns.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func parseTimestamp(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// findFirst returns the timestamp captured by the first line matching pat.
func findFirst(lines []string, pat *regexp.Regexp) (float64, bool) {
	for _, line := range lines {
		m := pat.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if ts, ok := parseTimestamp(m[1]); ok {
			return ts, true
		}
	}
	return 0, false
}

// triggerResolver holds the session zero-reference. The keypress is searched
// eagerly; fallbacks run only for the first interval that needs a trigger.
type triggerResolver struct {
	lines    []string
	source   string
	value    float64
	from     string
	resolved bool
}

func newTriggerResolver(lines []string, source string) *triggerResolver {
	r := &triggerResolver{lines: lines, source: source}
	if ts, ok := findFirst(lines, triggerPattern); ok {
		r.value = ts
		r.from = TriggerKeypress
		r.resolved = true
	}
	return r
}

// resolve returns the trigger, deriving it from iv when no keypress was logged.
func (r *triggerResolver) resolve(iv model.Interval, tt model.TrialType) (float64, error) {
	if r.resolved {
		return r.value, nil
	}

	switch tt {
	case model.TrialMovie:
		// The resting-state movie is started by the trigger.
		r.value = iv.Onset
		r.from = TriggerMovie
	case model.TrialCognitive, model.TrialMotor, model.TrialBlank, model.TrialVisual:
		ts, ok := findFirst(r.lines, eyetrackerPattern)
		if !ok {
			return 0, r.notFound(eyetrackerPattern)
		}
		r.value = ts
		r.from = TriggerEyetracker
	default:
		ts, ok := findFirst(r.lines, cueDismissPattern)
		if !ok {
			return 0, r.notFound(cueDismissPattern)
		}
		r.value = ts
		r.from = TriggerCue
	}

	r.resolved = true
	return r.value, nil
}

func (r *triggerResolver) notFound(fallback *regexp.Regexp) error {
	return &PatternNotFoundError{
		Pattern:  TriggerPattern,
		Source:   r.source,
		Fallback: fallback.String(),
	}
}
