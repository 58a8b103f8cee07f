package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/theaxonlab/physioevents/internal/model"
)

// contextWindow is the number of lines searched for a cognitive trial
// declaration: the onset line and the lines just above it.
const contextWindow = 7

// newTrialPattern matches the trial declaration carrying the fixation position.
var newTrialPattern = regexp.MustCompile(
	`([\d.]+)\s+EXP\s+New trial \(rep=\d+, index=\d+\): OrderedDict\(\[\('xpos', (-?\d+\.\d+)\), \('ypos', (-?\d+\.\d+)\)\]\)`)

// contextResolver recovers the value column from the lines around an interval.
type contextResolver struct {
	lines  []string
	source string
}

// value returns the auxiliary payload of iv: the hand for finger tapping,
// the fixation position for eye movements, and nothing otherwise.
func (c *contextResolver) value(iv model.Interval, tt model.TrialType) (string, error) {
	switch tt {
	case model.TrialMotor:
		return c.hand(iv)
	case model.TrialCognitive:
		return c.fixation(iv)
	}
	return "", nil
}

// onsetPrefix is the anchored timestamp of iv as PsychoPy prints it.
func onsetPrefix(iv model.Interval) string {
	return `^\s*` + regexp.QuoteMeta(fmt.Sprintf("%.4f", iv.Onset)) + `\s+EXP\s+`
}

// hand finds the instruction text logged with the same timestamp as the onset.
func (c *contextResolver) hand(iv model.Interval) (string, error) {
	pat := regexp.MustCompile(onsetPrefix(iv) + `ft_hand:\s*text\s*=\s*'(RIGHT|LEFT)'`)
	for _, line := range c.lines {
		if m := pat.FindStringSubmatch(line); m != nil {
			return strings.ToLower(m[1]), nil
		}
	}
	return "", &PatternNotFoundError{Pattern: pat.String(), Source: c.source}
}

// fixation finds the trial declaration in the window ending at the onset line.
func (c *contextResolver) fixation(iv model.Interval) (string, error) {
	pat := regexp.MustCompile(onsetPrefix(iv) + regexp.QuoteMeta(iv.Keyword) + `:\s+autoDraw\s*=\s*True`)

	idx := -1
	for i, line := range c.lines {
		if pat.MatchString(line) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", &PatternNotFoundError{Pattern: pat.String(), Source: c.source}
	}

	start := max(idx+1-contextWindow, 0)

	var matches [][]string
	for _, line := range c.lines[start : idx+1] {
		matches = append(matches, newTrialPattern.FindAllStringSubmatch(line, -1)...)
	}
	if len(matches) != 1 {
		return "", &AmbiguousContextError{
			Source:  c.source,
			Onset:   iv.Onset,
			Line:    idx + 1,
			Matches: len(matches),
		}
	}

	m := matches[0]
	return fmt.Sprintf("[%s, %s]", m[2], m[3]), nil
}
