package source

import (
	"regexp"
	"sort"
	"strings"

	"github.com/theaxonlab/physioevents/internal/model"
)

// trialTypes maps PsychoPy component names to trial types.
// polygon_7 and polygon_8 both draw the last exhale cue.
var trialTypes = map[string]model.TrialType{
	"bh_body_2":             model.TrialHold,
	"bh_body":               model.TrialHoldTest,
	"bh_end":                model.TrialHoldEndTest,
	"bh_end_2":              model.TrialHoldEnd,
	"bh_end_3":              model.TrialBreathFreely,
	"eye_movement_fixation": model.TrialCognitive,
	"ft_hand":               model.TrialMotor,
	"fixation":              model.TrialBlank,
	"grating":               model.TrialVisual,
	"movie":                 model.TrialMovie,
	"polygon_4":             model.TrialBreathIn,
	"polygon_5":             model.TrialBreathOut,
	"polygon_6":             model.TrialBreathInLast,
	"polygon_8":             model.TrialBreathOutLast,
	"polygon_7":             model.TrialBreathOutLast,
}

// Lookup returns the trial type drawn by a PsychoPy component.
func Lookup(keyword string) (model.TrialType, bool) {
	tt, ok := trialTypes[keyword]
	return tt, ok
}

// Keywords returns the known component names in a deterministic order,
// longest first so a regexp alternation prefers full names over prefixes.
func Keywords() []string {
	kws := make([]string, 0, len(trialTypes))
	for k := range trialTypes {
		kws = append(kws, k)
	}
	sort.Slice(kws, func(i, j int) bool {
		if len(kws[i]) != len(kws[j]) {
			return len(kws[i]) > len(kws[j])
		}
		return kws[i] < kws[j]
	})
	return kws
}

// keywordAlternation is the regexp group body matching any known keyword.
func keywordAlternation() string {
	kws := Keywords()
	quoted := make([]string, len(kws))
	for i, k := range kws {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(quoted, "|")
}
