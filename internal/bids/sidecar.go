package bids

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
)

// Sidecar is the JSON metadata written next to an events table.
type Sidecar struct {
	StimulusPresentation StimulusPresentation `json:"StimulusPresentation"`
	TrialType            *ColumnDescription   `json:"trial_type,omitempty"`
}

// StimulusPresentation describes the software that presented the stimuli.
type StimulusPresentation struct {
	OperatingSystem string `json:"OperatingSystem"`
	SoftwareName    string `json:"SoftwareName"`
	SoftwareRRID    string `json:"SoftwareRRID"`
	SoftwareVersion string `json:"SoftwareVersion"`
	Code            string `json:"Code,omitempty"`
}

// ColumnDescription documents a categorical column.
type ColumnDescription struct {
	Description string            `json:"Description"`
	LongName    string            `json:"LongName"`
	Levels      map[string]string `json:"Levels"`
}

var longNames = map[model.Task]string{
	model.TaskBreathHolding:  "Breath-holding task conditions (that is, breath-in, breath-out, and hold)",
	model.TaskQualityControl: "Quality control task",
	model.TaskRest:           "Resting state",
}

var levelDescriptions = map[model.TrialType]string{
	model.TrialBreathIn:      "A green rectangle is displayed to indicate breathing in",
	model.TrialBreathInLast:  "A green rectangle is displayed for the last breath-in before hold",
	model.TrialBreathOut:     "A yellow rectangle (orange for the last breath-in before hold) is displayed to indicate breathing out",
	model.TrialBreathOutLast: "An orange rectangle is displayed for the last breath-out before hold",
	model.TrialHold:          "A red rectangle is displayed to indicate breath hold",
	model.TrialHoldTest:      "A red rectangle is displayed to indicate the practice breath hold",
	model.TrialHoldEnd:       "End of the breath hold",
	model.TrialHoldEndTest:   "End of the practice breath hold",
	model.TrialBreathFreely:  "Free breathing after the hold",
	model.TrialVisual:        "Fixation point on top of grating pattern",
	model.TrialCognitive:     "Moving fixation points",
	model.TrialMotor:         "Finger taping with the left or right hand following the indications on the screen",
	"motor":                  "Finger taping with the left or right hand following the indications on the screen",
	model.TrialBlank:         "Fixation point in the center of the screen",
	model.TrialMovie:         "Movie",
}

// NewSidecar builds the sidecar of a table recorded during task. Levels list
// the trial types present in the table.
func NewSidecar(task model.Task, t model.EventTable, meta config.BIDSConfig) Sidecar {
	sc := Sidecar{
		StimulusPresentation: StimulusPresentation{
			OperatingSystem: meta.OperatingSystem,
			SoftwareName:    meta.SoftwareName,
			SoftwareRRID:    meta.SoftwareRRID,
			SoftwareVersion: meta.SoftwareVersion,
			Code:            meta.Code[string(task)],
		},
	}

	longName, ok := longNames[task]
	if !ok {
		return sc
	}

	levels := make(map[string]string)
	for _, tt := range t.TrialTypes() {
		desc := levelDescriptions[tt]
		if desc == "" {
			desc = string(tt)
		}
		levels[string(tt)] = desc
	}

	sc.TrialType = &ColumnDescription{
		Description: "Indicator of type of action that is expected",
		LongName:    longName,
		Levels:      levels,
	}
	return sc
}

// WriteSidecar encodes sc with four-space indentation.
func WriteSidecar(w io.Writer, sc Sidecar) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(sc)
}

// WriteSidecarFile writes sc to path.
func WriteSidecarFile(path string, sc Sidecar) error {
	f, err := os.Create(path) //nolint:gosec // output path derives from the input path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := WriteSidecar(f, sc); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
