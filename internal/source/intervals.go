package source

import (
	"regexp"

	"github.com/theaxonlab/physioevents/internal/model"
)

// autoDrawPattern matches "<ts> EXP <keyword>: autoDraw = <state>" for the
// keywords of the vocabulary only.
var autoDrawPattern = regexp.MustCompile(
	`^\s*([\d.]+)\s+EXP\s+(` + keywordAlternation() + `):\s+autoDraw\s*=\s*(\w+)`)

// AutoDrawPattern is the pattern named when a log holds no toggle at all.
var AutoDrawPattern = autoDrawPattern.String()

// toggle is one autoDraw statement of a known keyword.
type toggle struct {
	Timestamp float64
	Keyword   string
	Active    bool
	Line      int
}

// scanToggles returns the autoDraw toggles of lines in document order.
// Statements whose state is neither True nor False are skipped.
func scanToggles(lines []string) []toggle {
	var toggles []toggle
	for i, line := range lines {
		m := autoDrawPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts, ok := parseTimestamp(m[1])
		if !ok {
			continue
		}
		var active bool
		switch m[3] {
		case "True":
			active = true
		case "False":
			active = false
		default:
			continue
		}
		toggles = append(toggles, toggle{
			Timestamp: ts,
			Keyword:   m[2],
			Active:    active,
			Line:      i + 1,
		})
	}
	return toggles
}

type drawState int

const (
	stateIdle drawState = iota
	statePending
)

// keywordState is the per-keyword state machine: Idle, or Pending since onset.
type keywordState struct {
	state drawState
	onset float64
	line  int
}

// intervalExtractor pairs activations with the next deactivation per keyword.
type intervalExtractor struct {
	states  map[string]*keywordState
	dropped int
}

func newIntervalExtractor() *intervalExtractor {
	return &intervalExtractor{states: make(map[string]*keywordState)}
}

// feed advances the keyword's state machine and returns the interval closed
// by t, if any. A later activation replaces a pending one; a deactivation
// with nothing pending is dropped.
func (x *intervalExtractor) feed(t toggle) (model.Interval, bool) {
	st, ok := x.states[t.Keyword]
	if !ok {
		st = &keywordState{}
		x.states[t.Keyword] = st
	}

	if t.Active {
		if st.state == statePending {
			x.dropped++
		}
		st.state = statePending
		st.onset = t.Timestamp
		st.line = t.Line
		return model.Interval{}, false
	}

	if st.state != statePending {
		x.dropped++
		return model.Interval{}, false
	}

	iv := model.Interval{
		Keyword:   t.Keyword,
		Onset:     st.onset,
		Offset:    t.Timestamp,
		OnsetLine: st.line,
		CloseLine: t.Line,
	}
	st.state = stateIdle
	return iv, true
}

// pending returns how many keywords are still waiting for a deactivation.
func (x *intervalExtractor) pending() int {
	n := 0
	for _, st := range x.states {
		if st.state == statePending {
			n++
		}
	}
	return n
}

// extractIntervals returns the closed intervals in the order they closed,
// and the number of toggles that did not contribute to one.
func extractIntervals(toggles []toggle) ([]model.Interval, int) {
	x := newIntervalExtractor()
	var out []model.Interval
	for _, t := range toggles {
		if iv, ok := x.feed(t); ok {
			out = append(out, iv)
		}
	}
	return out, x.dropped + x.pending()
}
