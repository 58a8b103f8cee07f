package model

import "strings"

// Kind tells which extraction path produced a session.
type Kind string

// Session kinds.
const (
	KindLog      Kind = "log"
	KindChannels Kind = "channels"
)

// Task identifies the acquisition protocol a file belongs to.
type Task string

// Known tasks.
const (
	TaskUnknown        Task = ""
	TaskBreathHolding  Task = "bht"
	TaskQualityControl Task = "qct"
	TaskRest           Task = "rest"
)

// ParseTask maps a user-supplied name to a Task.
func ParseTask(s string) Task {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bht", "breath-holding", "breathholding":
		return TaskBreathHolding
	case "qct", "quality-control", "control":
		return TaskQualityControl
	case "rest", "resting-state":
		return TaskRest
	}
	return TaskUnknown
}

// String returns the task name, or "unknown".
func (t Task) String() string {
	if t == TaskUnknown {
		return "unknown"
	}
	return string(t)
}

// Trace holds the analog channels of a physio recording.
type Trace struct {
	Time []float64
	RB   []float64
	ECG  []float64
	GA   []float64
}

// Len returns the number of samples.
func (t Trace) Len() int {
	return len(t.Time)
}

// Session is the result of converting one input file.
type Session struct {
	Path string
	Name string
	Kind Kind
	Task Task

	// Trigger is the zero-reference timestamp of a log session.
	Trigger       float64
	TriggerSource string

	Table EventTable

	// Dropped counts toggles that never formed an interval.
	Dropped     int
	ParseErrors int

	// Trace is only populated for freshly parsed channel sessions.
	Trace *Trace

	ModTimeNs int64
	SizeBytes int64

	Err error
}

// OK reports whether the session was converted without a fatal error.
func (s Session) OK() bool {
	return s.Err == nil
}

// InferTask guesses the task of a log session from the trial types it contains.
func InferTask(t EventTable) Task {
	if t.Len() == 0 {
		return TaskUnknown
	}
	counts := t.CountByType()
	if counts[TrialMovie] > 0 {
		return TaskRest
	}
	for _, tt := range []TrialType{TrialCognitive, TrialMotor, TrialVisual, TrialBlank} {
		if counts[tt] > 0 {
			return TaskQualityControl
		}
	}
	return TaskBreathHolding
}
